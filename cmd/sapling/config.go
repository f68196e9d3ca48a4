// config.go - Configuration management for the sapling CLI
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// envPrefix namespaces environment overrides.
const envPrefix = "SAPLING_"

// Config represents the application configuration
type Config struct {
	// Parameter files
	SpendParamsPath  string `json:"spend_params_path" validate:"required"`
	OutputParamsPath string `json:"output_params_path" validate:"required"`

	// Ledger used by the demo
	LedgerPath string `json:"ledger_path" validate:"required"`

	// Key derivation
	DefaultPath string `json:"default_path" validate:"required,startswith=m"`

	// Logging
	LogLevel string `json:"log_level" validate:"oneof=debug info warn error fatal"`
	LogFile  string `json:"log_file"`

	// Performance
	TimeoutSeconds int `json:"timeout_seconds" validate:"gt=0"`

	// Security
	EnableAudit  bool   `json:"enable_audit"`
	AuditLogPath string `json:"audit_log_path" validate:"required_if=EnableAudit true"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		SpendParamsPath:  "params/sapling-spend.params",
		OutputParamsPath: "params/sapling-output.params",
		LedgerPath:       "ledger.json",
		DefaultPath:      "m/32'/133'/0'",
		LogLevel:         "info",
		LogFile:          "",
		TimeoutSeconds:   300,
		EnableAudit:      false,
		AuditLogPath:     "audit.log",
	}
}

// LoadConfig loads configuration from file or creates default, then applies
// SAPLING_* overrides from the environment and an optional .env file.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	} else if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}

	// A missing .env is fine
	_ = godotenv.Load()
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"SPEND_PARAMS":  &c.SpendParamsPath,
		"OUTPUT_PARAMS": &c.OutputParamsPath,
		"LEDGER":        &c.LedgerPath,
		"DEFAULT_PATH":  &c.DefaultPath,
		"LOG_LEVEL":     &c.LogLevel,
		"LOG_FILE":      &c.LogFile,
		"AUDIT_LOG":     &c.AuditLogPath,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv(envPrefix + "TIMEOUT_SECONDS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTIMEOUT_SECONDS: %w", envPrefix, err)
		}
		c.TimeoutSeconds = n
	}
	if v, ok := os.LookupEnv(envPrefix + "ENABLE_AUDIT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sENABLE_AUDIT: %w", envPrefix, err)
		}
		c.EnableAudit = b
	}
	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
