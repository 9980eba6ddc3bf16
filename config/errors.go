package config

import (
	"errors"
	"fmt"
)

// Configuration validation errors.
var (
	ErrNoSources       = errors.New("at least one source is required")
	ErrDuplicateSource = errors.New("source defined more than once")
	ErrMissingBaseURL  = errors.New("base_url is required")
	ErrInvalidBaseURL  = errors.New("base_url must be an absolute http or https URL")
	ErrUnknownSource   = errors.New("source not found in configuration")
	ErrInvalidDate     = errors.New("start_date must be formatted YYYY-MM-DD")
	ErrInvalidFormat   = errors.New("output_format must be 'csv' or 'sqlite'")
	ErrNegativeSetting = errors.New("setting must not be negative")
)

// ConfigError reports a misconfigured source, profile or setting. It is the
// only error class that aborts a run, and it is always raised before any
// request is made.
type ConfigError struct {
	Source string // source or common profile name, empty for file-level errors
	Field  string
	Err    error
}

func (e *ConfigError) Error() string {
	switch {
	case e.Source != "" && e.Field != "":
		return fmt.Sprintf("config: %s.%s: %v", e.Source, e.Field, e.Err)
	case e.Source != "":
		return fmt.Sprintf("config: %s: %v", e.Source, e.Err)
	case e.Field != "":
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	default:
		return fmt.Sprintf("config: %v", e.Err)
	}
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
