// Package config defines the process configuration for Postline. It is
// loaded once at startup and immutable thereafter, following 12-Factor
// separation of code from configuration. Two sources exist: environment
// variables (optionally seeded from a .env file) for process settings and
// secrets, and an operator-edited YAML file for the publishing profiles.
//
// A missing required value or an invalid profile definition fails the
// process immediately; no safe partial progress is possible without config.
package config

import "time"

// Config is the top-level configuration shared by all Postline binaries.
// Each binary uses only the subsets it needs; fields that only some
// binaries require (API key, database URL) are validated at the call site
// rather than globally.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"oneof=local dev prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Ledger     LedgerConfig
	UploadPost UploadPostConfig
	Mirror     MirrorConfig
	Ops        OpsConfig

	// ProfilesPath locates the YAML file defining publishing profiles.
	ProfilesPath string `envconfig:"PROFILES_PATH" default:"config/profiles.yaml"`
}

// LedgerConfig locates the append-only attempt ledger.
type LedgerConfig struct {
	Path string `envconfig:"LEDGER_PATH" default:"results/posting-log.csv"`
}

// UploadPostConfig holds posting-service client settings. APIKey is
// required by the scheduler and status poller but not by the importer or
// health checker, so it is checked by those binaries instead of tagged
// required here.
type UploadPostConfig struct {
	APIKey  string        `envconfig:"UPLOAD_POST_API_KEY"`
	BaseURL string        `envconfig:"UPLOAD_POST_BASE_URL" default:"https://api.upload-post.com" validate:"url"`
	Timeout time.Duration `envconfig:"UPLOAD_POST_TIMEOUT" default:"120s"`

	// StatusQueriesPerSecond paces the reconciler's successive status
	// queries to respect the service's rate limits.
	StatusQueriesPerSecond int `envconfig:"UPLOAD_POST_STATUS_QPS" default:"3" validate:"min=1"`
}

// MirrorConfig holds the durable mirror connection. Empty URL means no
// mirror is configured; the importer refuses to run and the health checker
// falls back to reading the ledger file.
type MirrorConfig struct {
	URL string `envconfig:"DATABASE_URL"`
}

// OpsConfig holds the read-only ops API server settings.
type OpsConfig struct {
	Port string `envconfig:"OPS_PORT" default:"8090"`
}
