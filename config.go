package main

import (
	"bytes"
	"errors"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type config struct {
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`
	Log struct {
		Level    string `mapstructure:"level"`
		File     string `mapstructure:"file"`
		Requests bool   `mapstructure:"requests"`
	} `mapstructure:"log"`
	Metrics struct {
		Enabled bool   `mapstructure:"enabled"`
		Path    string `mapstructure:"path"`
	} `mapstructure:"metrics"`
	InfluxDB struct {
		Host        string `mapstructure:"host"`
		Token       string `mapstructure:"token"`
		Org         string `mapstructure:"org"`
		Bucket      string `mapstructure:"bucket"`
		Measurement string `mapstructure:"measurement"`
	} `mapstructure:"influxdb"`
	MQTT struct {
		Broker   string `mapstructure:"broker"`
		ClientID string `mapstructure:"clientid"`
		Topic    string `mapstructure:"topic"`
		QoS      int    `mapstructure:"qos"`
	} `mapstructure:"mqtt"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "")
	v.SetDefault("server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.requests", true)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("influxdb.host", "")
	v.SetDefault("influxdb.token", "")
	v.SetDefault("influxdb.org", "")
	v.SetDefault("influxdb.bucket", "")
	v.SetDefault("influxdb.measurement", "smarthome_created")
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.clientid", "")
	v.SetDefault("mqtt.topic", "smarthome/created")
	v.SetDefault("mqtt.qos", 0)
}

// loadConfig merges defaults, the optional yaml file at path and SMARTHOME_*
// environment variables, in increasing precedence. A missing file is not an
// error.
func loadConfig(v *viper.Viper, path string, sugar *zap.SugaredLogger) (*config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		sugar.Warnf("Ignoring .env file: %v", err)
	}

	setDefaults(v)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.SetEnvPrefix("smarthome")
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		sugar.Info("No configuration file found. Using Default config")
	case err != nil:
		return nil, err
	default:
		if err := v.ReadConfig(bytes.NewBuffer(raw)); err != nil {
			return nil, err
		}
	}

	var c config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "smarthome-" + uuid.NewString()
	}
	sugar.Infof("Configuration from %v", v.AllSettings())
	return &c, nil
}
