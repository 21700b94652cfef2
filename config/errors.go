package config

import (
	"errors"
	"fmt"
)

// ErrConfigMissing indicates the settings file does not exist yet. The
// operator has to create it with at least the Trakt application credentials
// before the tool can do anything.
var ErrConfigMissing = errors.New("settings file not found")

// IncompleteError reports a required settings key that is absent at the point
// of use. Keys are only validated when a flow actually needs them.
type IncompleteError struct {
	Field string
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("settings not setup - missing %s", e.Field)
}

// WriteError indicates the settings file could not be written back.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("unable to write settings to %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
