package domain

import "errors"

// ErrNotFound reports that a configuration value does not exist.
var ErrNotFound = errors.New("not found")
