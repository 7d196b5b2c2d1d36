package services

import "errors"

// ErrValidation marks a request rejected before any persistence: an empty or
// malformed id, or empty message text.
var ErrValidation = errors.New("validation failed")
