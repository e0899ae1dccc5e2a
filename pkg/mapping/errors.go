package mapping

import "fmt"

// ConfigError reports a malformed mapping document. It is fatal: no record is
// processed with a mapping that failed to load.
type ConfigError struct {
	// Path is the mapping file, empty when parsed from memory.
	Path string
	// Field is the offending element, e.g. "fields.email.validators[0]".
	Field string
	Msg   string
	Err   error
}

func (e *ConfigError) Error() string {
	prefix := "mapping"
	if e.Path != "" {
		prefix = fmt.Sprintf("mapping %s", e.Path)
	}
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", prefix, e.Field, msg)
	}
	return fmt.Sprintf("%s: %s", prefix, msg)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func configErr(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}
