package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

var (
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"json", "console"}
	logOutputs = []string{"stdout", "stderr"}
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("configuration validation failed: %s", strings.Join(messages, "; "))
}

// Has reports whether there are any errors.
func (ve ValidationErrors) Has() bool {
	return len(ve) > 0
}

// Validate checks the whole configuration. The returned error is a
// ValidationErrors listing every problem.
func (c *Config) Validate() error {
	errs := slices.Clone(c.invalid)

	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, ValidationError{Field: "CONFUTIL_DB", Value: c.DBPath, Message: "database path is required"})
	}
	if u, err := url.Parse(c.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{Field: "CONFUTIL_SERVER", Value: c.ServerURL, Message: "must be an absolute URL"})
	}
	if c.Addr == "" {
		errs = append(errs, ValidationError{Field: "CONFUTIL_ADDR", Value: c.Addr, Message: "listen address is required"})
	}
	if c.UID <= 0 {
		errs = append(errs, ValidationError{Field: "CONFUTIL_UID", Value: c.UID, Message: "must be positive"})
	}

	if !slices.Contains(logLevels, strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{Field: "LOG_LEVEL", Value: c.Logging.Level, Message: "must be one of " + strings.Join(logLevels, ", ")})
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		errs = append(errs, ValidationError{Field: "LOG_FORMAT", Value: c.Logging.Format, Message: "must be json or console"})
	}
	if !slices.Contains(logOutputs, c.Logging.Output) {
		errs = append(errs, ValidationError{Field: "LOG_OUTPUT", Value: c.Logging.Output, Message: "must be stdout or stderr"})
	}

	for field, d := range map[string]int64{
		"READ_TIMEOUT":  int64(c.Server.ReadTimeout),
		"WRITE_TIMEOUT": int64(c.Server.WriteTimeout),
		"IDLE_TIMEOUT":  int64(c.Server.IdleTimeout),
	} {
		if d < 0 {
			errs = append(errs, ValidationError{Field: field, Value: d, Message: "must not be negative"})
		}
	}

	if errs.Has() {
		slices.SortStableFunc(errs, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })
		return errs
	}
	return nil
}
