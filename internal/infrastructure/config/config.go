package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic cloud mapper.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Mapper   MapperConfig   `yaml:"mapper"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies the main device this gateway runs on.
type DeviceConfig struct {
	// ExternalID is the cloud-facing identifier of the main device.
	ExternalID string `yaml:"external_id"`

	// ChildType is reported when child devices are registered.
	ChildType string `yaml:"child_type"`
}

// MQTTConfig contains local message bus connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// LocalPrefix is the root of the local topic scheme (default "te").
	LocalPrefix string `yaml:"local_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// CloudConfig describes the cloud platform endpoint.
type CloudConfig struct {
	// TopicPrefix is the bridged topic root (default "c8y"), so status
	// records go to "<prefix>/s/us".
	TopicPrefix string `yaml:"topic_prefix"`

	// HTTPURL is the base URL of the cloud REST proxy.
	HTTPURL string `yaml:"http_url"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// RequestTimeout bounds a single REST call (seconds).
	RequestTimeout int `yaml:"request_timeout"`
}

// MapperConfig contains operation mapping settings.
type MapperConfig struct {
	// OperationsDir holds one capability marker file per supported operation.
	OperationsDir string `yaml:"operations_dir"`

	// FileTransferDir is where downloaded files are cached for local agents.
	FileTransferDir string `yaml:"file_transfer_dir"`

	// FileTransferURL is the local file transfer service base URL.
	FileTransferURL string `yaml:"file_transfer_url"`

	// AutoLogUpload is one of "always", "on-failure", "never".
	AutoLogUpload string `yaml:"auto_log_upload"`

	// SoftwareManagementAPI is "advanced" (SmartREST 140) or "legacy" (REST inventory).
	SoftwareManagementAPI string `yaml:"software_management_api"`

	// AutoRegister registers unknown child devices on first sight.
	AutoRegister bool `yaml:"auto_register"`

	// OperationTimeout bounds a single operation routine (seconds).
	OperationTimeout int `yaml:"operation_timeout"`

	// MaxTransfers bounds concurrent uploads and downloads.
	MaxTransfers int `yaml:"max_transfers"`

	// MaxPayloadSize is the largest accepted command payload in bytes.
	MaxPayloadSize int `yaml:"max_payload_size"`

	// WatchOperations enables re-announcement when marker files change on disk.
	WatchOperations bool `yaml:"watch_operations"`
}

// DatabaseConfig contains SQLite database settings for the entity store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains the local status API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Auto log upload policies.
const (
	AutoLogUploadAlways    = "always"
	AutoLogUploadOnFailure = "on-failure"
	AutoLogUploadNever     = "never"
)

// Software management API modes.
const (
	SoftwareAPIAdvanced = "advanced"
	SoftwareAPILegacy   = "legacy"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYMAPPER_SECTION_KEY
// For example: GRAYMAPPER_MQTT_HOST, GRAYMAPPER_DEVICE_ID
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ChildType: "thin-edge.io-child",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graymapper",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			LocalPrefix: "te",
		},
		Cloud: CloudConfig{
			TopicPrefix:    "c8y",
			HTTPURL:        "http://127.0.0.1:8001/c8y",
			RequestTimeout: 30,
		},
		Mapper: MapperConfig{
			OperationsDir:         "/etc/graymapper/operations/c8y",
			FileTransferDir:       "/var/graymapper/file-transfer",
			FileTransferURL:       "http://127.0.0.1:8000/te/v1/files",
			AutoLogUpload:         AutoLogUploadOnFailure,
			SoftwareManagementAPI: SoftwareAPIAdvanced,
			AutoRegister:          true,
			OperationTimeout:      3600,
			MaxTransfers:          4,
			MaxPayloadSize:        16184,
			WatchOperations:       true,
		},
		Database: DatabaseConfig{
			Path:        "./data/graymapper.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYMAPPER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("GRAYMAPPER_DEVICE_ID"); v != "" {
		cfg.Device.ExternalID = v
	}

	// MQTT
	if v := os.Getenv("GRAYMAPPER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYMAPPER_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYMAPPER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYMAPPER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Cloud
	if v := os.Getenv("GRAYMAPPER_CLOUD_URL"); v != "" {
		cfg.Cloud.HTTPURL = v
	}
	if v := os.Getenv("GRAYMAPPER_CLOUD_USERNAME"); v != "" {
		cfg.Cloud.Username = v
	}
	if v := os.Getenv("GRAYMAPPER_CLOUD_PASSWORD"); v != "" {
		cfg.Cloud.Password = v
	}

	// Database
	if v := os.Getenv("GRAYMAPPER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYMAPPER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ExternalID == "" {
		errs = append(errs, "device.external_id is required (set GRAYMAPPER_DEVICE_ID environment variable)")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.LocalPrefix == "" {
		errs = append(errs, "mqtt.local_prefix is required")
	}

	if c.Cloud.TopicPrefix == "" {
		errs = append(errs, "cloud.topic_prefix is required")
	}
	if c.Cloud.HTTPURL == "" {
		errs = append(errs, "cloud.http_url is required")
	}

	if c.Mapper.OperationsDir == "" {
		errs = append(errs, "mapper.operations_dir is required")
	}
	switch c.Mapper.AutoLogUpload {
	case AutoLogUploadAlways, AutoLogUploadOnFailure, AutoLogUploadNever:
	default:
		errs = append(errs, "mapper.auto_log_upload must be always, on-failure, or never")
	}
	switch c.Mapper.SoftwareManagementAPI {
	case SoftwareAPIAdvanced, SoftwareAPILegacy:
	default:
		errs = append(errs, "mapper.software_management_api must be advanced or legacy")
	}
	if c.Mapper.OperationTimeout <= 0 {
		errs = append(errs, "mapper.operation_timeout must be positive")
	}
	if c.Mapper.MaxTransfers <= 0 {
		errs = append(errs, "mapper.max_transfers must be positive")
	}
	if c.Mapper.MaxPayloadSize <= 0 {
		errs = append(errs, "mapper.max_payload_size must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetOperationTimeout returns the per-operation time bound as a Duration.
func (c *Config) GetOperationTimeout() time.Duration {
	return time.Duration(c.Mapper.OperationTimeout) * time.Second
}

// GetCloudRequestTimeout returns the cloud REST timeout as a Duration.
func (c *Config) GetCloudRequestTimeout() time.Duration {
	return time.Duration(c.Cloud.RequestTimeout) * time.Second
}
