package health

import "errors"

// ErrCheckTimeout indicates a health check timed out.
var ErrCheckTimeout = errors.New("health: check timeout")
