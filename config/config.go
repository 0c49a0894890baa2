// Package config loads application configuration with viper and sets up the
// global zap logger.
package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/astropanel/sales-engine/payroll"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Payroll PayrollConfig `yaml:"payroll" mapstructure:"payroll"`
	Audit   AuditConfig   `yaml:"audit" mapstructure:"audit"`
	Refresh RefreshConfig `yaml:"refresh" mapstructure:"refresh"`
}

// StoreConfig selects the data store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite, postgres or memory
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PayrollConfig holds compensation settings that do not live in the store.
type PayrollConfig struct {
	BaseSalary float64             `yaml:"base_salary" mapstructure:"base_salary"`
	Timezone   string              `yaml:"timezone" mapstructure:"timezone"`
	TeamAward  float64             `yaml:"team_award" mapstructure:"team_award"`
	TeamGroups []payroll.TeamGroup `yaml:"team_groups" mapstructure:"team_groups"`
}

// AuditConfig configures the schedule audit.
type AuditConfig struct {
	RequiredGeos    []string `yaml:"required_geos" mapstructure:"required_geos"`
	ExcludedTargets []string `yaml:"excluded_targets" mapstructure:"excluded_targets"`
}

// RefreshConfig configures the periodic recompute.
type RefreshConfig struct {
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// Load reads configuration from file and environment. A .env file in the
// working directory, if present, seeds the environment first; variables
// already set are not overridden.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: read .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SALES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "sales.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("payroll.base_salary", 300)
	v.SetDefault("payroll.timezone", "UTC")
	v.SetDefault("payroll.team_award", 30)
	v.SetDefault("audit.required_geos", []string{})
	v.SetDefault("audit.excluded_targets", []string{"1-й месяц"})
	v.SetDefault("refresh.interval", "5m")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if len(cfg.Payroll.TeamGroups) == 0 {
		cfg.Payroll.TeamGroups = payroll.DefaultTeamGroups()
	}

	return &cfg, nil
}

// Location returns the timezone that defines a payroll day.
func (p PayrollConfig) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: payroll timezone %q", p.Timezone)
	}
	return loc, nil
}

// BaseSalaryDecimal returns the fallback base salary as money.
func (p PayrollConfig) BaseSalaryDecimal() decimal.Decimal {
	return decimal.NewFromFloat(p.BaseSalary)
}

// TeamAwardDecimal returns the team competition award as money.
func (p PayrollConfig) TeamAwardDecimal() decimal.Decimal {
	return decimal.NewFromFloat(p.TeamAward)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
