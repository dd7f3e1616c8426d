package config

import (
	"fmt"
	"strings"
	"time"

	"printer_monitor/internal/models"

	"github.com/spf13/viper"
)

// Config is the process configuration read from configs/config.yml.
type Config struct {
	Port     string                 `mapstructure:"port"`
	Log      LogConfig              `mapstructure:"log"`
	DB       DBConfig               `mapstructure:"db"`
	Auth     AuthConfig             `mapstructure:"auth"`
	History  HistoryConfig          `mapstructure:"history"`
	MQTT     MQTTConfig             `mapstructure:"mqtt"`
	Influx   InfluxConfig           `mapstructure:"influx"`
	Printers []models.PrinterConfig `mapstructure:"printers"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// HistoryConfig bounds the rolling history kept per device.
type HistoryConfig struct {
	MaxEntries int `mapstructure:"max_entries"`
}

type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"` // e.g. tcp://localhost:1883
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	QoS         int    `mapstructure:"qos"`
}

type InfluxConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Org     string `mapstructure:"org"`
	Bucket  string `mapstructure:"bucket"`
}

const (
	envPrefix         = "PRINTER_MONITOR"
	defaultPort       = "8080"
	defaultDBPath     = "app.db"
	defaultTokenTTL   = time.Hour
	defaultMaxEntries = 10000
	defaultMQTTPrefix = "printer_monitor"
	defaultMQTTClient = "printer-monitor"
)

// Load reads the config file named "config" from the given directories.
// Environment variables (PRINTER_MONITOR_PORT, PRINTER_MONITOR_DB_PATH, ...) override file values.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	return load(v)
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("log.level", "info")
	v.SetDefault("db.path", defaultDBPath)
	v.SetDefault("auth.token_ttl", defaultTokenTTL)
	v.SetDefault("history.max_entries", defaultMaxEntries)
	v.SetDefault("mqtt.client_id", defaultMQTTClient)
	v.SetDefault("mqtt.topic_prefix", defaultMQTTPrefix)
	v.SetDefault("mqtt.qos", 1)
}
