package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env        string `mapstructure:"APP_ENV" validate:"oneof=development staging production"`
	LogLevel   string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	HTTPAddr   string `mapstructure:"HTTP_ADDR" validate:"required"`
	DBType     string `mapstructure:"STORAGE_BACKEND" validate:"oneof=file sqlite postgres"`
	DBDSN      string `mapstructure:"POSTGRES_DSN"`
	SQLitePath string `mapstructure:"SQLITE_PATH"`
	DataDir    string `mapstructure:"DATA_DIR"`
	Timezone   string `mapstructure:"TIMEZONE" validate:"required"`

	location *time.Location
}

var defaults = map[string]string{
	"APP_ENV":         "development",
	"LOG_LEVEL":       "info",
	"HTTP_ADDR":       ":9102",
	"STORAGE_BACKEND": "file",
	"POSTGRES_DSN":    "",
	"SQLITE_PATH":     "data/zimmeter.db",
	"DATA_DIR":        "data",
	"TIMEZONE":        "Local",
}

var validate = validator.New()

// Load reads .env (if present), then the environment, then the optional YAML
// file named by ZIMMETER_CONFIG. Environment values win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	if path := os.Getenv("ZIMMETER_CONFIG"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.DBType == "postgres" && c.DBDSN == "" {
		return errors.New("POSTGRES_DSN is required when STORAGE_BACKEND=postgres")
	}
	if c.DBType == "sqlite" && c.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite")
	}
	if c.DBType == "file" && c.DataDir == "" {
		return errors.New("file storage requires DATA_DIR to be set")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	c.location = loc
	return nil
}

// Location is the calendar used for days and business days.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}
