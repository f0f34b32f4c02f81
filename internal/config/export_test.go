package config

// DetectFormat exports detectFormat for testing.
var DetectFormat = detectFormat

// MakeTestConfig returns a minimal valid Config with all fields set.
func MakeTestConfig() *Config {
	return &Config{
		Project:       MakeTestProjectConfig(),
		Fetch:         MakeTestFetchConfig(),
		Realtime:      RealtimeConfig{BaseURL: "", Enabled: false},
		Storage:       StorageConfig{Dir: ""},
		Logging:       MakeTestLoggingConfig(),
		CustomSignals: map[string]any{},
	}
}

// MakeTestProjectConfig returns a minimal valid ProjectConfig.
func MakeTestProjectConfig() ProjectConfig {
	return ProjectConfig{
		ProjectNumber:   "123456",
		ProjectID:       "test-project",
		Namespace:       "firebase",
		APIKey:          "test-api-key",
		AppID:           "1:123456:android:abc",
		PackageName:     "com.example.app",
		AndroidCertSHA1: "",
	}
}

// MakeTestFetchConfig returns a minimal valid FetchConfig.
func MakeTestFetchConfig() FetchConfig {
	return FetchConfig{
		BaseURL:                     "https://firebaseremoteconfig.googleapis.com",
		TimeoutSeconds:              60,
		MinimumFetchIntervalSeconds: 43200,
	}
}

// MakeTestLoggingConfig returns a minimal LoggingConfig with all fields set.
func MakeTestLoggingConfig() LoggingConfig {
	return LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
		Pretty: false,
	}
}

// MakeTestValidationError returns a ValidationError with Errors initialized.
func MakeTestValidationError() *ValidationError {
	return &ValidationError{
		Errors: []string{},
	}
}
