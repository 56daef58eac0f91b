// Package config loads the bootstrap settings: where the documents live, how
// to reach the hardware and which optional surfaces to run. Operational
// tunables live in the replicated configuration document instead.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const EnvPrefix = "CHEESECAVE"

// Store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendNATS   = "nats"
	BackendEtcd   = "etcd"
)

type Settings struct {
	LogLevel string
	Store    StoreSettings
	DB       DBSettings
	HTTP     HTTPSettings
	Auth     AuthSettings
	Hardware HardwareSettings
	MQTT     MQTTSettings
}

type StoreSettings struct {
	Backend   string
	ConfigKey string
	StateKey  string
	Timeout   time.Duration
	NATS      NATSSettings
	Etcd      EtcdSettings
}

type NATSSettings struct {
	URL    string
	Bucket string
}

type EtcdSettings struct {
	Endpoints   []string
	CACert      string
	Cert        string
	Key         string
	DialTimeout time.Duration
}

type DBSettings struct {
	Path      string
	Retention time.Duration
}

type HTTPSettings struct {
	Enabled bool
	Port    string
}

type AuthSettings struct {
	SigningKey string
	TokenTTL   time.Duration
}

type HardwareSettings struct {
	I2CBus             int
	SensorAddresses    []int
	HumidifierPin      int
	PrimaryButtonPin   int
	SecondaryButtonPin int
}

type MQTTSettings struct {
	Broker   string
	ClientID string
	Topic    string
}

// SetDefaults registers every key with its default so env overrides work
// without a config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("store.backend", BackendSQLite)
	v.SetDefault("store.config_key", "/cheesecave/config")
	v.SetDefault("store.state_key", "/cheesecave/state")
	v.SetDefault("store.timeout", 10*time.Second)
	v.SetDefault("store.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("store.nats.bucket", "cheesecave")
	v.SetDefault("store.etcd.endpoints", []string{"127.0.0.1:2379"})
	v.SetDefault("store.etcd.ca_cert", "")
	v.SetDefault("store.etcd.cert", "")
	v.SetDefault("store.etcd.key", "")
	v.SetDefault("store.etcd.dial_timeout", 5*time.Second)

	v.SetDefault("db.path", "cheesecave.db")
	v.SetDefault("db.retention", 30*24*time.Hour)

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.port", "8080")

	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("hardware.i2c_bus", 1)
	v.SetDefault("hardware.sensor_addresses", []int{0x44, 0x45})
	v.SetDefault("hardware.humidifier_pin", 24)
	v.SetDefault("hardware.primary_button_pin", 6)
	v.SetDefault("hardware.secondary_button_pin", 5)

	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", "cheesecave")
	v.SetDefault("mqtt.topic", "cheesecave")
}

// Load reads path, or configs/config.yml when path is empty. A missing
// default file is not an error; a missing explicit file is.
func Load(v *viper.Viper, path string) (Settings, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	s := FromViper(v)
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// FromViper snapshots the current viper values.
func FromViper(v *viper.Viper) Settings {
	return Settings{
		LogLevel: v.GetString("log_level"),
		Store: StoreSettings{
			Backend:   strings.ToLower(strings.TrimSpace(v.GetString("store.backend"))),
			ConfigKey: v.GetString("store.config_key"),
			StateKey:  v.GetString("store.state_key"),
			Timeout:   v.GetDuration("store.timeout"),
			NATS: NATSSettings{
				URL:    v.GetString("store.nats.url"),
				Bucket: v.GetString("store.nats.bucket"),
			},
			Etcd: EtcdSettings{
				Endpoints:   v.GetStringSlice("store.etcd.endpoints"),
				CACert:      v.GetString("store.etcd.ca_cert"),
				Cert:        v.GetString("store.etcd.cert"),
				Key:         v.GetString("store.etcd.key"),
				DialTimeout: v.GetDuration("store.etcd.dial_timeout"),
			},
		},
		DB: DBSettings{
			Path:      v.GetString("db.path"),
			Retention: v.GetDuration("db.retention"),
		},
		HTTP: HTTPSettings{
			Enabled: v.GetBool("http.enabled"),
			Port:    v.GetString("http.port"),
		},
		Auth: AuthSettings{
			SigningKey: v.GetString("auth.signing_key"),
			TokenTTL:   v.GetDuration("auth.token_ttl"),
		},
		Hardware: HardwareSettings{
			I2CBus:             v.GetInt("hardware.i2c_bus"),
			SensorAddresses:    v.GetIntSlice("hardware.sensor_addresses"),
			HumidifierPin:      v.GetInt("hardware.humidifier_pin"),
			PrimaryButtonPin:   v.GetInt("hardware.primary_button_pin"),
			SecondaryButtonPin: v.GetInt("hardware.secondary_button_pin"),
		},
		MQTT: MQTTSettings{
			Broker:   v.GetString("mqtt.broker"),
			ClientID: v.GetString("mqtt.client_id"),
			Topic:    v.GetString("mqtt.topic"),
		},
	}
}

// Validate rejects store settings no command can work with.
func (s Settings) Validate() error {
	switch s.Store.Backend {
	case BackendMemory, BackendSQLite:
	case BackendNATS:
		if s.Store.NATS.URL == "" || s.Store.NATS.Bucket == "" {
			return errors.New("store.nats.url and store.nats.bucket are required for the nats backend")
		}
	case BackendEtcd:
		if len(s.Store.Etcd.Endpoints) == 0 {
			return errors.New("store.etcd.endpoints is required for the etcd backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q: must be one of memory, sqlite, nats, etcd", s.Store.Backend)
	}
	if s.Store.ConfigKey == "" || s.Store.StateKey == "" {
		return errors.New("store.config_key and store.state_key must not be empty")
	}
	if s.Store.ConfigKey == s.Store.StateKey {
		return fmt.Errorf("store.config_key and store.state_key must differ, both are %q", s.Store.ConfigKey)
	}
	return nil
}

// ValidateHTTP is checked only by commands that serve the API.
func (s Settings) ValidateHTTP() error {
	if s.HTTP.Enabled && s.Auth.SigningKey == "" {
		return errors.New("auth.signing_key is required when http.enabled is true")
	}
	return nil
}

// Watch calls onChange with fresh settings whenever the config file is
// written. It does nothing when no file was read.
func Watch(v *viper.Viper, onChange func(fsnotify.Event, Settings)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		onChange(e, FromViper(v))
	})
	v.WatchConfig()
	return true
}
