// Package config loads and validates the countersign YAML configuration.
//
// ${VAR} placeholders anywhere in the file are expanded from the
// environment at load time, so secrets like the trigger bearer token never
// live in the file itself. Undefined variables are left as-is and caught by
// validation where the value is required.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads, expands, parses and validates configuration from a file.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", absPath, err)
	}
	return cfg, nil
}

// Parse builds a Config from raw YAML bytes: env expansion, unmarshal,
// defaults, then validation.
func Parse(data []byte) (*Config, error) {
	expanded := interpolateEnv(string(data))

	var cfg Config
	if err := unmarshalStrict([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// unmarshalStrict decodes YAML rejecting unknown fields, so a typo like
// "public_keyfile" fails loudly instead of silently dropping the key.
func unmarshalStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// interpolateEnv replaces ${VAR} with the environment value.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Service.Listen == "" {
		cfg.Service.Listen = DefaultListen
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = DefaultLogLevel
	}
	if cfg.Trigger != nil && cfg.Trigger.Timeout <= 0 {
		cfg.Trigger.Timeout = DefaultTriggerTimeout
	}
}

// validate performs startup validation. Failures here abort the process:
// serving with a half-configured gateway is worse than not serving.
func validate(cfg *Config) error {
	if cfg.Service.Listen == "" {
		return fmt.Errorf("service.listen is required")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(cfg.Service.LogLevel)] {
		return fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", cfg.Service.LogLevel)
	}

	if _, err := ParseMaxBodySize(cfg.Service.MaxBodySize); err != nil {
		return fmt.Errorf("service.max_body_size: %w", err)
	}

	if err := validateSource("sources.ingest", cfg.Sources.Ingest); err != nil {
		return err
	}
	if err := validateSource("sources.fordefi", cfg.Sources.Fordefi); err != nil {
		return err
	}

	if cfg.Trigger != nil {
		if err := validateTrigger(cfg.Trigger); err != nil {
			return err
		}
	}
	return nil
}

func validateSource(field string, sc SourceConfig) error {
	switch {
	case sc.PublicKey == "" && sc.PublicKeyFile == "":
		return fmt.Errorf("%s: one of public_key or public_key_file is required", field)
	case sc.PublicKey != "" && sc.PublicKeyFile != "":
		return fmt.Errorf("%s: public_key and public_key_file are mutually exclusive", field)
	}
	return nil
}

func validateTrigger(tc *TriggerConfig) error {
	if tc.Endpoint == "" {
		return fmt.Errorf("trigger.endpoint is required when trigger is configured")
	}
	u, err := url.Parse(tc.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("trigger.endpoint must be an http(s) URL (got %q)", tc.Endpoint)
	}
	if tc.BearerToken == "" {
		return fmt.Errorf("trigger.bearer_token is required when trigger is configured")
	}
	if envVarPattern.MatchString(tc.BearerToken) {
		return fmt.Errorf("trigger.bearer_token references an undefined environment variable: %s", tc.BearerToken)
	}
	if tc.Timeout < 0 {
		return fmt.Errorf("trigger.timeout must be positive")
	}
	return nil
}

// ParseMaxBodySize parses size strings like "1MB", "512KB", "1048576" to
// bytes. Returns DefaultMaxBodySize if empty.
func ParseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)

	if strings.HasSuffix(upper, "KB") {
		multiplier = 1024
		upper = strings.TrimSuffix(upper, "KB")
	} else if strings.HasSuffix(upper, "MB") {
		multiplier = 1024 * 1024
		upper = strings.TrimSuffix(upper, "MB")
	} else if strings.HasSuffix(upper, "GB") {
		multiplier = 1024 * 1024 * 1024
		upper = strings.TrimSuffix(upper, "GB")
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result < 0 { // overflow
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
