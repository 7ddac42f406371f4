// Package config loads service settings from the environment, an optional
// .env file and an optional YAML file named by GRIDLOSS_CONFIG.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gridloss/internal/lossengine/domain/network"
	"gridloss/internal/lossengine/domain/record"
)

// Config holds service settings. Fields with yaml tags may also come from
// the YAML file, which takes precedence over the environment.
type Config struct {
	HTTPAddr        string
	JWTSecret       string
	AuthDisabled    bool
	ShutdownTimeout time.Duration

	WorkbookPath      string              `yaml:"workbook_path"`
	SampleFallback    bool                `yaml:"sample_fallback"`
	SnapshotRetention int                 `yaml:"snapshot_retention"`
	MaxUploadBytes    int64               `yaml:"max_upload_bytes"`
	AuditCapacity     int                 `yaml:"audit_capacity"`
	Bands             network.Bands       `yaml:"bands"`
	Headers           map[string][]string `yaml:"headers"`

	NotifyWebhookURL   string        `yaml:"notify_webhook_url"`
	NotifyTemplate     string        `yaml:"notify_template"`
	NotifyCooldown     time.Duration `yaml:"notify_cooldown"`
	NotifyDedupeWindow time.Duration `yaml:"notify_dedupe_window"`
}

// Load reads configuration. A missing .env file is not an error.
func Load() (Config, error) {
	envFile := getenvDefault("GRIDLOSS_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
	}

	cfg := Config{
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		AuthDisabled:      getenvBoolDefault("AUTH_DISABLED", false),
		ShutdownTimeout:   getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		WorkbookPath:      getenvDefault("GRIDLOSS_WORKBOOK", ""),
		SampleFallback:    getenvBoolDefault("GRIDLOSS_SAMPLE_FALLBACK", true),
		SnapshotRetention: getenvIntDefault("GRIDLOSS_SNAPSHOT_RETENTION", 5),
		MaxUploadBytes:    int64(getenvIntDefault("GRIDLOSS_MAX_UPLOAD_BYTES", 32<<20)),
		AuditCapacity:     getenvIntDefault("GRIDLOSS_AUDIT_CAPACITY", 500),
		Bands: network.Bands{
			LossGreenMax: getenvFloatDefault("GRIDLOSS_LOSS_GREEN_MAX", 2),
			LossAmberMax: getenvFloatDefault("GRIDLOSS_LOSS_AMBER_MAX", 5),
			SLAGreenMin:  getenvFloatDefault("GRIDLOSS_SLA_GREEN_MIN", 95),
			SLAAmberMin:  getenvFloatDefault("GRIDLOSS_SLA_AMBER_MIN", 85),
		},
		NotifyWebhookURL:   getenvDefault("GRIDLOSS_NOTIFY_WEBHOOK", ""),
		NotifyTemplate:     getenvDefault("GRIDLOSS_NOTIFY_TEMPLATE", ""),
		NotifyCooldown:     getenvDuration("GRIDLOSS_NOTIFY_COOLDOWN", 0),
		NotifyDedupeWindow: getenvDuration("GRIDLOSS_NOTIFY_DEDUPE_WINDOW", 30*time.Minute),
	}

	if path := os.Getenv("GRIDLOSS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks required values.
func (c Config) Validate() error {
	if c.JWTSecret == "" && !c.AuthDisabled {
		return errors.New("config: AUTH_JWT_SECRET is required unless AUTH_DISABLED=true")
	}
	if c.SnapshotRetention < 0 {
		return errors.New("config: snapshot retention must not be negative")
	}
	if err := c.Bands.Validate(); err != nil {
		return err
	}
	if _, err := c.FieldSet(); err != nil {
		return err
	}
	return nil
}

// FieldSet returns the default header candidates with configured overrides
// applied.
func (c Config) FieldSet() (record.FieldSet, error) {
	fields, unknown := record.DefaultFieldSet().Override(c.Headers)
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fields, fmt.Errorf("config: unknown header fields: %s", strings.Join(unknown, ", "))
	}
	return fields, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBoolDefault(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
