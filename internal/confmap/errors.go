package confmap

import "fmt"

// ConfigError represents a configuration error for an adapter or component.
type ConfigError struct {
	Component string
	Field     string
	Value     string
	Message   string
	Cause     error
}

func (e *ConfigError) Error() string {
	prefix := e.Component
	if prefix == "" {
		prefix = "config"
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	if e.Value == "" {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s=%q: %s", prefix, e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates a new ConfigError for a field validation failure.
func NewConfigError(component, field, message string) *ConfigError {
	return &ConfigError{Component: component, Field: field, Message: message}
}

// NewConfigErrorWithValue creates a ConfigError that includes the invalid value.
func NewConfigErrorWithValue(component, field, value, message string) *ConfigError {
	return &ConfigError{Component: component, Field: field, Value: value, Message: message}
}

// NewConfigErrorWithCause creates a ConfigError with an underlying cause.
func NewConfigErrorWithCause(component, field, message string, cause error) *ConfigError {
	return &ConfigError{Component: component, Field: field, Message: message, Cause: cause}
}
