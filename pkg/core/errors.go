package core

import "errors"

// Command rejections. They are advisory: state is left unchanged and the
// caller gets one of these wrapped with the command name.
var (
	ErrNotPoweredOn         = errors.New("drone is not powered on")
	ErrChargingInProgress   = errors.New("drone is charging")
	ErrNotAtChargingStation = errors.New("drone is not at the charging station")
	ErrBatteryDepleted      = errors.New("battery depleted")
	ErrBatteryFull          = errors.New("battery is already full")
	ErrInvalidSpeed         = errors.New("speed must be between 1 and 10")
	ErrInvalidDirection     = errors.New("invalid direction")
	ErrInvalidFieldSize     = errors.New("field size must be positive")
	ErrNotDragging          = errors.New("no drag in progress")
	ErrInvalidArgument      = errors.New("invalid argument")
)

var rejections = []error{
	ErrNotPoweredOn,
	ErrChargingInProgress,
	ErrNotAtChargingStation,
	ErrBatteryDepleted,
	ErrBatteryFull,
	ErrInvalidSpeed,
	ErrInvalidDirection,
	ErrInvalidFieldSize,
	ErrNotDragging,
	ErrInvalidArgument,
}

// IsRejection reports whether err is a command rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	if err == nil {
		return false
	}
	for _, r := range rejections {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

// RejectionReason returns a stable machine-readable code for a rejection,
// or "" when err is not one.
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrNotPoweredOn):
		return "not_powered_on"
	case errors.Is(err, ErrChargingInProgress):
		return "charging_in_progress"
	case errors.Is(err, ErrNotAtChargingStation):
		return "not_at_charging_station"
	case errors.Is(err, ErrBatteryDepleted):
		return "battery_depleted"
	case errors.Is(err, ErrBatteryFull):
		return "battery_full"
	case errors.Is(err, ErrInvalidSpeed):
		return "invalid_speed"
	case errors.Is(err, ErrInvalidDirection):
		return "invalid_direction"
	case errors.Is(err, ErrInvalidFieldSize):
		return "invalid_field_size"
	case errors.Is(err, ErrNotDragging):
		return "not_dragging"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	}
	return ""
}
