package config

import "errors"

// ErrValidation marks a configuration value the runtime cannot work with.
var ErrValidation = errors.New("invalid configuration")
