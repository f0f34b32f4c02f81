package config

// Valid logging levels.
var validLogLevels = map[string]bool{
	"":      true, // Empty defaults to info
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Valid logging formats.
var validLogFormats = map[string]bool{
	"":        true, // Empty defaults to json
	"json":    true,
	"console": true,
	"text":    true, // Alias for console
	"pretty":  true,
}

// Validate checks the configuration for errors.
// It validates all required fields, valid values, and cross-field constraints.
// Returns a ValidationError containing all errors found, or nil if valid.
func (c *Config) Validate() error {
	errs := &ValidationError{Errors: nil}

	validateProject(c, errs)
	validateFetch(c, errs)
	validateLogging(c, errs)
	validateCustomSignals(c, errs)

	return errs.ToError()
}

// validateProject validates the project identity configuration.
func validateProject(cfg *Config, errs *ValidationError) {
	if cfg.Project.ProjectNumber == "" {
		errs.Add("project.project_number is required")
	}
	if cfg.Project.Namespace == "" {
		errs.Add("project.namespace is required")
	}
	if cfg.Project.APIKey == "" {
		errs.Add("project.api_key is required")
	}
}

// validateFetch validates the fetch configuration section.
func validateFetch(cfg *Config, errs *ValidationError) {
	if cfg.Fetch.BaseURL == "" {
		errs.Add("fetch.base_url is required")
	}
	if cfg.Fetch.TimeoutSeconds < 0 {
		errs.Add("fetch.timeout_in_seconds must be >= 0")
	}
	if cfg.Fetch.MinimumFetchIntervalSeconds < 0 {
		errs.Add("fetch.minimum_fetch_interval_in_seconds must be >= 0")
	}
}

// validateLogging validates the logging configuration section.
func validateLogging(cfg *Config, errs *ValidationError) {
	if !validLogLevels[cfg.Logging.Level] {
		errs.Addf("logging.level is invalid (got %q, valid: debug, info, warn, error)",
			cfg.Logging.Level)
	}
	if !validLogFormats[cfg.Logging.Format] {
		errs.Addf("logging.format is invalid (got %q, valid: json, console, text, pretty)",
			cfg.Logging.Format)
	}
}

// validateCustomSignals enforces the same limits metadata.Store applies at
// runtime, surfaced early at config-load time.
func validateCustomSignals(cfg *Config, errs *ValidationError) {
	if len(cfg.CustomSignals) > 100 {
		errs.Addf("custom_signals must have <= 100 entries (got %d)", len(cfg.CustomSignals))
	}
	for k, v := range cfg.CustomSignals {
		if len(k) > 250 {
			errs.Addf("custom_signals key %q exceeds 250 bytes", k)
		}
		if sv, ok := v.(string); ok && len(sv) > 500 {
			errs.Addf("custom_signals value for key %q exceeds 500 bytes", k)
		}
	}
}
