package config

import (
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"postline/internal/types"
)

// Load builds the process configuration: .env file first (absent file is
// non-fatal; real environment variables win over the file), then envconfig
// struct tags, then struct validation. Any failure is fatal to the caller.
func Load() (*Config, error) {
	// godotenv does not overwrite variables already set in the environment.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "processing environment", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, types.NewAppError(types.ErrCodeConfigInvalid, "validating configuration", err)
	}

	return &cfg, nil
}
