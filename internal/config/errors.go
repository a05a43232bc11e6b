package config

import "fmt"

// ConfigurationError reports an invalid feature configuration. It is always
// fatal: no pipeline is built from a configuration that produced one.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Errorf builds a ConfigurationError for the given field.
func Errorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
