// env_config.go: Environment overrides and ${VAR} expansion for wrapper configuration
//
// Hosts rarely let a plugin take command-line flags, so the environment is
// the practical way to tune a wrapper in the field. Variables use the
// CLAP_RELOAD_ prefix; an optional dotenv file is loaded first with godotenv
// and never overrides variables already present in the process environment.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package clapreload

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of every environment variable read by the wrapper.
const EnvPrefix = "CLAP_RELOAD_"

// EnvConfigOptions configures ${VAR} expansion.
type EnvConfigOptions struct {
	// Prefix tried before the bare variable name
	Prefix string `json:"prefix" yaml:"prefix"`

	// Whether to fail when a variable is missing and has no default
	FailOnMissing bool `json:"fail_on_missing" yaml:"fail_on_missing"`

	// Whether to reject values with control characters or null bytes
	ValidateValues bool `json:"validate_values" yaml:"validate_values"`

	// Default values for undefined variables
	Defaults map[string]string `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// DefaultEnvConfigOptions returns the expansion options used by ResolveConfig.
func DefaultEnvConfigOptions() EnvConfigOptions {
	return EnvConfigOptions{
		Prefix:         EnvPrefix,
		FailOnMissing:  false,
		ValidateValues: true,
		Defaults:       make(map[string]string),
	}
}

var variablePattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnvironmentVariables expands ${VAR} and ${VAR:-default} placeholders.
//
// Variable resolution priority:
//  1. Prefixed environment variable
//  2. Bare environment variable
//  3. Inline default
//  4. Configured default
//  5. Empty string, or an error when FailOnMissing is set
func ExpandEnvironmentVariables(input string, options EnvConfigOptions) (string, error) {
	if input == "" {
		return input, nil
	}

	var firstErr error
	result := variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		submatches := variablePattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		inlineDefault := ""
		if len(submatches) >= 4 {
			inlineDefault = submatches[3]
		}

		expanded, err := expandSingleEnvironmentVariable(submatches[1], inlineDefault, options)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return expanded
	})

	if firstErr != nil {
		return input, firstErr
	}
	return result, nil
}

func expandSingleEnvironmentVariable(varName, inlineDefault string, options EnvConfigOptions) (string, error) {
	prefixedName := options.Prefix + varName
	if value := os.Getenv(prefixedName); value != "" {
		return validateAndSanitizeValue(value, options)
	}
	if value := os.Getenv(varName); value != "" {
		return validateAndSanitizeValue(value, options)
	}
	if inlineDefault != "" {
		return validateAndSanitizeValue(inlineDefault, options)
	}
	if value, exists := options.Defaults[varName]; exists {
		return validateAndSanitizeValue(value, options)
	}
	if options.FailOnMissing {
		return "", NewConfigValidationError(fmt.Sprintf("required environment variable not found: %s (also tried %s)", varName, prefixedName), nil)
	}
	return "", nil
}

func validateAndSanitizeValue(value string, options EnvConfigOptions) (string, error) {
	if !options.ValidateValues {
		return value, nil
	}
	if strings.Contains(value, "\x00") {
		return "", NewConfigValidationError("environment variable value contains null byte", nil)
	}
	if len(value) > 4096 {
		return "", NewConfigValidationError(fmt.Sprintf("environment variable value too long: %d bytes (max 4096)", len(value)), nil)
	}
	for i, r := range value {
		if r < 32 && r != '\t' {
			return "", NewConfigValidationError(fmt.Sprintf("environment variable contains control character at position %d", i), nil)
		}
	}
	return value, nil
}

// LoadDotEnv loads a dotenv file into the process environment. An empty path
// tries ".env" in the working directory and ignores its absence; an explicit
// path must exist.
func LoadDotEnv(path string) error {
	if path == "" {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		return NewConfigFileError(path, "failed to load dotenv file", err)
	}
	return nil
}

// ApplyEnvOverrides overlays CLAP_RELOAD_ variables on cfg and expands ${VAR}
// placeholders in path-like fields.
//
// Recognized variables: HOT_RELOAD, DEBOUNCE_WINDOW, CROSSFADE_DURATION,
// CHECK_INTERVAL, MAX_SYMLINK_DEPTH, ENTRY_SYMBOL, TEMP_DIR, LOG_LEVEL,
// AUDIT_ENABLED, AUDIT_FILE.
func ApplyEnvOverrides(cfg Config) (Config, error) {
	out := cfg
	options := DefaultEnvConfigOptions()

	if v, ok := lookupEnv("HOT_RELOAD"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, NewConfigValidationError("invalid "+EnvPrefix+"HOT_RELOAD", err)
		}
		out.HotReload = b
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"DEBOUNCE_WINDOW", &out.DebounceWindow},
		{"CROSSFADE_DURATION", &out.CrossfadeDuration},
		{"CHECK_INTERVAL", &out.CheckInterval},
	}
	for _, d := range durations {
		v, ok := lookupEnv(d.name)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return cfg, NewConfigValidationError("invalid "+EnvPrefix+d.name, err)
		}
		*d.dst = parsed
	}

	if v, ok := lookupEnv("MAX_SYMLINK_DEPTH"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, NewConfigValidationError("invalid "+EnvPrefix+"MAX_SYMLINK_DEPTH", err)
		}
		out.MaxSymlinkDepth = n
	}
	if v, ok := lookupEnv("ENTRY_SYMBOL"); ok {
		out.EntrySymbol = v
	}
	if v, ok := lookupEnv("TEMP_DIR"); ok {
		out.TempDir = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		out.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookupEnv("AUDIT_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, NewConfigValidationError("invalid "+EnvPrefix+"AUDIT_ENABLED", err)
		}
		out.Audit.Enabled = b
	}
	if v, ok := lookupEnv("AUDIT_FILE"); ok {
		out.Audit.OutputFile = v
	}

	for _, field := range []*string{&out.TempDir, &out.Audit.OutputFile, &out.ConfigFile} {
		expanded, err := ExpandEnvironmentVariables(*field, options)
		if err != nil {
			return cfg, err
		}
		*field = expanded
	}

	return out, nil
}

func lookupEnv(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
