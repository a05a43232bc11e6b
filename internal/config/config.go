package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the application settings file looked up in the config dir.
const ConfigFileName = "featurex.cfg.json"

// MemoryConfig holds file export settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
	MergeDataset   bool   `json:"mergeDataset" mapstructure:"mergeDataset"`
}

// SQLiteConfig holds SQLite storage settings. An empty Path keeps the
// database in memory and dumps it to DumpPath.
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpPath     string        `json:"dumpPath" mapstructure:"dumpPath"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// DBConfig holds Postgres connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database"`
}

// InfluxConfig holds InfluxDB settings
type InfluxConfig struct {
	Protocol     string        `json:"protocol" mapstructure:"protocol"`
	Host         string        `json:"host" mapstructure:"host"`
	Port         string        `json:"port" mapstructure:"port"`
	Token        string        `json:"token" mapstructure:"token"`
	Org          string        `json:"org" mapstructure:"org"`
	Bucket       string        `json:"bucket" mapstructure:"bucket"`
	StepInterval time.Duration `json:"stepInterval" mapstructure:"stepInterval"`
	BackupPath   string        `json:"backupPath" mapstructure:"backupPath"`
}

// URL returns the server address.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// WebSocketConfig holds streaming sink settings
type WebSocketConfig struct {
	URL    string `json:"url" mapstructure:"url"`
	Secret string `json:"secret" mapstructure:"secret"`
}

// StorageConfig selects and configures the feature sink
type StorageConfig struct {
	Type      string          `json:"type" mapstructure:"type"`
	Memory    MemoryConfig    `json:"memory" mapstructure:"memory"`
	SQLite    SQLiteConfig    `json:"sqlite" mapstructure:"sqlite"`
	DB        DBConfig        `json:"db" mapstructure:"db"`
	Influx    InfluxConfig    `json:"influx" mapstructure:"influx"`
	WebSocket WebSocketConfig `json:"websocket" mapstructure:"websocket"`
}

// OTelConfig holds metrics export settings
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	ExportInterval time.Duration `json:"exportInterval" mapstructure:"exportInterval"`
}

// WorkerConfig holds replay processing settings
type WorkerConfig struct {
	Parallel int  `json:"parallel" mapstructure:"parallel"`
	FailFast bool `json:"failFast" mapstructure:"failFast"`
}

// MonitorConfig holds progress reporting settings
type MonitorConfig struct {
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// GraylogConfig holds GELF log shipping settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// SetDefaults registers the default value of every setting.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFormat", "text")
	viper.SetDefault("logsDir", "./logs")
	viper.SetDefault("featureConfig", "./features.json")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./features")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.memory.mergeDataset", true)
	viper.SetDefault("storage.sqlite.path", "")
	viper.SetDefault("storage.sqlite.dumpPath", "./features.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "features")

	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "featurex")
	viper.SetDefault("influx.bucket", "features")
	viper.SetDefault("influx.stepInterval", "44ms")
	viper.SetDefault("influx.backupPath", "./features_influx_backup.lp.gz")

	viper.SetDefault("websocket.url", "ws://localhost:5000/api/features")
	viper.SetDefault("websocket.secret", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "featurex")
	viper.SetDefault("otel.exportInterval", "30s")

	viper.SetDefault("workers.parallel", 0)
	viper.SetDefault("workers.failFast", false)

	viper.SetDefault("monitor.interval", "10s")
	viper.SetDefault("monitor.statusFile", "")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")
}

// GetStorageConfig assembles the sink settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
			MergeDataset:   viper.GetBool("storage.memory.mergeDataset"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpPath:     viper.GetString("storage.sqlite.dumpPath"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetString("db.port"),
			Username: viper.GetString("db.username"),
			Password: viper.GetString("db.password"),
			Database: viper.GetString("db.database"),
		},
		Influx: InfluxConfig{
			Protocol:     viper.GetString("influx.protocol"),
			Host:         viper.GetString("influx.host"),
			Port:         viper.GetString("influx.port"),
			Token:        viper.GetString("influx.token"),
			Org:          viper.GetString("influx.org"),
			Bucket:       viper.GetString("influx.bucket"),
			StepInterval: viper.GetDuration("influx.stepInterval"),
			BackupPath:   viper.GetString("influx.backupPath"),
		},
		WebSocket: WebSocketConfig{
			URL:    viper.GetString("websocket.url"),
			Secret: viper.GetString("websocket.secret"),
		},
	}
}

// GetOTelConfig assembles the metrics settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		ExportInterval: viper.GetDuration("otel.exportInterval"),
	}
}

// GetWorkerConfig assembles the replay processing settings.
func GetWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Parallel: viper.GetInt("workers.parallel"),
		FailFast: viper.GetBool("workers.failFast"),
	}
}

// GetMonitorConfig assembles the progress reporting settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   viper.GetDuration("monitor.interval"),
		StatusFile: viper.GetString("monitor.statusFile"),
	}
}

// GetGraylogConfig assembles the GELF settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
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
