package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "dronesim.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. DRONESIM_STORAGE_TYPE.
const EnvPrefix = "DRONESIM"

// SimConfig holds the flight simulation tunables.
type SimConfig struct {
	StartX         float64
	StartY         float64
	StartAltitude  float64
	Speed          int
	Battery        float64
	DrainPerTick   float64
	ChargePerTick  float64
	LowLevel       float64
	CriticalLevel  float64
	PhotoCost      float64
	RecordingCost  float64
	PhotoBonus     int
	Mission        string
	AltitudeStep   float64
	TickInterval   time.Duration
	HoverAmplitude float64
	HistorySize    int
}

// FieldConfig places the normalized field on the globe.
type FieldConfig struct {
	OriginLon    float64
	OriginLat    float64
	WidthMeters  float64
	HeightMeters float64
}

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir   string `json:"outputDir" mapstructure:"outputDir"`
	Compression string `json:"compression" mapstructure:"compression"`
}

// SQLiteConfig holds settings for the in-memory sqlite backend.
type SQLiteConfig struct {
	OutputDir    string
	DumpInterval time.Duration
}

// PostgresConfig holds the postgres connection settings.
type PostgresConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the connection string for gorm's postgres driver.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.Database, c.SSLMode)
}

// WebSocketConfig holds settings for streaming flights to a remote collector.
type WebSocketConfig struct {
	URL        string
	Secret     string
	AckTimeout time.Duration
}

// InfluxConfig holds settings for the influx telemetry backend.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// StorageConfig selects and configures the flight recorder backend.
type StorageConfig struct {
	Type      string
	QueueSize int
	Memory    MemoryConfig
	SQLite    SQLiteConfig
	Postgres  PostgresConfig
	WebSocket WebSocketConfig
	Influx    InfluxConfig
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// UploadConfig points at the dashboard receiving flight exports.
type UploadConfig struct {
	ServerURL string
	APIKey    string
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level          string
	Dir            string
	GraylogEnabled bool
	GraylogAddress string
}

// SetDefaults registers every default value. Load calls it; tests and the
// CLI call it directly when running without a file.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("sim.startX", 50.0)
	viper.SetDefault("sim.startY", 50.0)
	viper.SetDefault("sim.startAltitude", 30.0)
	viper.SetDefault("sim.speed", 5)
	viper.SetDefault("sim.battery", 100.0)
	viper.SetDefault("sim.drainPerTick", 0.1)
	viper.SetDefault("sim.chargePerTick", 1.0)
	viper.SetDefault("sim.lowLevel", 20.0)
	viper.SetDefault("sim.criticalLevel", 10.0)
	viper.SetDefault("sim.photoCost", 0.5)
	viper.SetDefault("sim.recordingCost", 1.0)
	viper.SetDefault("sim.photoBonus", 10)
	viper.SetDefault("sim.mission", "Explore the farm")
	viper.SetDefault("sim.altitudeStep", 5.0)
	viper.SetDefault("sim.tickInterval", "200ms")
	viper.SetDefault("sim.hoverAmplitude", 0.002)
	viper.SetDefault("sim.historySize", 200)

	viper.SetDefault("field.originLon", 100.6077)
	viper.SetDefault("field.originLat", 14.0208)
	viper.SetDefault("field.widthMeters", 400.0)
	viper.SetDefault("field.heightMeters", 300.0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.queueSize", 1000)
	viper.SetDefault("storage.memory.outputDir", "./recordings")
	viper.SetDefault("storage.memory.compression", "gzip")
	viper.SetDefault("storage.sqlite.outputDir", "./recordings")
	viper.SetDefault("storage.sqlite.dumpInterval", "1m")
	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.username", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.database", "dronesim")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.websocket.url", "ws://localhost:5000/api/v1/flights/ws")
	viper.SetDefault("storage.websocket.secret", "")
	viper.SetDefault("storage.websocket.ackTimeout", "10s")
	viper.SetDefault("storage.influx.url", "http://localhost:8086")
	viper.SetDefault("storage.influx.token", "supersecrettoken")
	viper.SetDefault("storage.influx.org", "farmassist")
	viper.SetDefault("storage.influx.bucket", "dronesim")

	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.readTimeout", "10s")
	viper.SetDefault("server.shutdownTimeout", "5s")

	viper.SetDefault("upload.serverUrl", "http://localhost:5000")
	viper.SetDefault("upload.apiKey", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "dronesim")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. A missing file is
// reported as an error wrapping viper.ConfigFileNotFoundError; defaults and
// environment overrides stay in effect.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// IsNotFound reports whether err means the config file does not exist.
func IsNotFound(err error) bool {
	var nf viper.ConfigFileNotFoundError
	return errors.As(err, &nf)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetSimConfig returns the simulation settings.
func GetSimConfig() SimConfig {
	return SimConfig{
		StartX:         viper.GetFloat64("sim.startX"),
		StartY:         viper.GetFloat64("sim.startY"),
		StartAltitude:  viper.GetFloat64("sim.startAltitude"),
		Speed:          viper.GetInt("sim.speed"),
		Battery:        viper.GetFloat64("sim.battery"),
		DrainPerTick:   viper.GetFloat64("sim.drainPerTick"),
		ChargePerTick:  viper.GetFloat64("sim.chargePerTick"),
		LowLevel:       viper.GetFloat64("sim.lowLevel"),
		CriticalLevel:  viper.GetFloat64("sim.criticalLevel"),
		PhotoCost:      viper.GetFloat64("sim.photoCost"),
		RecordingCost:  viper.GetFloat64("sim.recordingCost"),
		PhotoBonus:     viper.GetInt("sim.photoBonus"),
		Mission:        viper.GetString("sim.mission"),
		AltitudeStep:   viper.GetFloat64("sim.altitudeStep"),
		TickInterval:   viper.GetDuration("sim.tickInterval"),
		HoverAmplitude: viper.GetFloat64("sim.hoverAmplitude"),
		HistorySize:    viper.GetInt("sim.historySize"),
	}
}

// GetFieldConfig returns the georeference of the field.
func GetFieldConfig() FieldConfig {
	return FieldConfig{
		OriginLon:    viper.GetFloat64("field.originLon"),
		OriginLat:    viper.GetFloat64("field.originLat"),
		WidthMeters:  viper.GetFloat64("field.widthMeters"),
		HeightMeters: viper.GetFloat64("field.heightMeters"),
	}
}

// GetStorageConfig returns the recorder backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:      viper.GetString("storage.type"),
		QueueSize: viper.GetInt("storage.queueSize"),
		Memory: MemoryConfig{
			OutputDir:   viper.GetString("storage.memory.outputDir"),
			Compression: viper.GetString("storage.memory.compression"),
		},
		SQLite: SQLiteConfig{
			OutputDir:    viper.GetString("storage.sqlite.outputDir"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		Postgres: PostgresConfig{
			Host:     viper.GetString("storage.postgres.host"),
			Port:     viper.GetString("storage.postgres.port"),
			Username: viper.GetString("storage.postgres.username"),
			Password: viper.GetString("storage.postgres.password"),
			Database: viper.GetString("storage.postgres.database"),
			SSLMode:  viper.GetString("storage.postgres.sslmode"),
		},
		WebSocket: WebSocketConfig{
			URL:        viper.GetString("storage.websocket.url"),
			Secret:     viper.GetString("storage.websocket.secret"),
			AckTimeout: viper.GetDuration("storage.websocket.ackTimeout"),
		},
		Influx: InfluxConfig{
			URL:    viper.GetString("storage.influx.url"),
			Token:  viper.GetString("storage.influx.token"),
			Org:    viper.GetString("storage.influx.org"),
			Bucket: viper.GetString("storage.influx.bucket"),
		},
	}
}

// GetServerConfig returns the HTTP API settings.
func GetServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            viper.GetString("server.addr"),
		ReadTimeout:     viper.GetDuration("server.readTimeout"),
		ShutdownTimeout: viper.GetDuration("server.shutdownTimeout"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetUploadConfig returns the dashboard upload settings.
func GetUploadConfig() UploadConfig {
	return UploadConfig{
		ServerURL: viper.GetString("upload.serverUrl"),
		APIKey:    viper.GetString("upload.apiKey"),
	}
}

// GetLoggingConfig returns the log output settings.
func GetLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		Dir:            viper.GetString("logsDir"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}
