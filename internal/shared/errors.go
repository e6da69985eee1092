package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Resolution errors
	ErrResolutionFailed = fmt.Errorf("resolution failed")
	ErrTrackNotFound    = fmt.Errorf("no track found")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Relay errors
	ErrCacheIDNotFound = fmt.Errorf("cache ID not found")
	ErrDecode          = fmt.Errorf("decode error")
	ErrUpstream        = fmt.Errorf("upstream error")
	ErrProxyFailed     = fmt.Errorf("proxy failed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrCookieParse     = fmt.Errorf("unrecognized cookie format")
)
