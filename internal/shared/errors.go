package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")
	ErrMissingUser   = fmt.Errorf("no user identity configured")

	// API and service errors
	ErrAPIRequest          = fmt.Errorf("API request failed")
	ErrMalformedResponse   = fmt.Errorf("malformed response")
	ErrServiceUnavailable  = fmt.Errorf("service unavailable")
	ErrInsufficientCredits = fmt.Errorf("insufficient credits")
	ErrThemeNotFound       = fmt.Errorf("theme not found")

	// Generation and polling errors
	ErrImageNotReady       = fmt.Errorf("image not ready")
	ErrRetryBudgetExceeded = fmt.Errorf("retry budget exceeded")
	ErrCancelled           = fmt.Errorf("cancelled")
	ErrNoJob               = fmt.Errorf("no generation job available")
	ErrEmptyJob            = fmt.Errorf("generation job has no images")
	ErrTimeout             = fmt.Errorf("operation timed out")

	// Storage errors
	ErrStoreUnavailable = fmt.Errorf("response store unavailable")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
	ErrUnsupportedType = fmt.Errorf("unsupported image type")
)
