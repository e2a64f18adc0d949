package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds the path of a session log file, e.g.
// logs/dronesim.20260212_213836.log.
func LogFilePath(logsDir, program string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", program, sessionStart.Format("20060102_150405")),
	)
}

// OTelLogFilePath is the file the OTel stdout exporter writes to for a
// session.
func OTelLogFilePath(logsDir, program string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.otel.jsonl", program, sessionStart.Format("20060102_150405")),
	)
}
