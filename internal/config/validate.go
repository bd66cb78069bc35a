package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks Config for problems that would only surface at the first
// request. It collects all errors into a single joined error.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT must be 1-65535, got %d", c.Server.Port))
	}
	if c.Storage.DataDir == "" {
		errs = append(errs, "DATA_DIR is required")
	}

	switch c.Ledger.Backend {
	case "file":
	case "bigquery":
		if c.Ledger.BigQueryProject == "" {
			errs = append(errs, "BIGQUERY_PROJECT is required when LEDGER_BACKEND=bigquery")
		}
	default:
		errs = append(errs, fmt.Sprintf("LEDGER_BACKEND must be file or bigquery, got %q", c.Ledger.Backend))
	}

	if c.Gateway.APIKey == "" && !c.Gateway.UseVertex {
		errs = append(errs, "GOOGLE_API_KEY is required unless GOOGLE_GENAI_USE_VERTEXAI is set")
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, "GATEWAY_TIMEOUT must be positive")
	}
	if c.Gateway.Retries < 0 {
		errs = append(errs, "GATEWAY_RETRIES must not be negative")
	}

	if c.Classifier.Mode != "model" && c.Classifier.Mode != "keyword" {
		errs = append(errs, fmt.Sprintf("CLASSIFIER_MODE must be model or keyword, got %q", c.Classifier.Mode))
	}
	if c.Context.MaxHistory < 1 {
		errs = append(errs, "CONTEXT_MAX_HISTORY must be at least 1")
	}
	if c.Context.MaxDocuments < 0 {
		errs = append(errs, "CONTEXT_MAX_DOCUMENTS must not be negative")
	}

	switch c.Lock.Backend {
	case "local":
	case "redis":
		if c.Redis.Port < 1 || c.Redis.Port > 65535 {
			errs = append(errs, fmt.Sprintf("REDIS_PORT must be 1-65535, got %d", c.Redis.Port))
		}
		if c.Lock.TTL <= 0 {
			errs = append(errs, "LOCK_TTL must be positive")
		}
	default:
		errs = append(errs, fmt.Sprintf("LOCK_BACKEND must be local or redis, got %q", c.Lock.Backend))
	}

	if c.Jobs.Workers < 1 {
		errs = append(errs, "JOBS_WORKERS must be at least 1")
	}
	if c.Jobs.MaxRetries < 0 {
		errs = append(errs, "JOBS_MAX_RETRIES must not be negative")
	}

	if len(errs) > 0 {
		return errors.New("config validation failed:\n  " + strings.Join(errs, "\n  "))
	}
	return nil
}
