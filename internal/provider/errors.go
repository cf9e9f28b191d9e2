package provider

import "errors"

// Sentinel errors wrapped by Client implementations so callers can
// categorize failures without knowing the provider.
var (
	// ErrAuth marks authentication/authorization failures (bad or missing key).
	ErrAuth = errors.New("model API authentication failed")

	// ErrRateLimited marks throttling or overload responses.
	ErrRateLimited = errors.New("model API rate limited")
)

// Category is the coarse failure class surfaced on the output stream.
type Category string

const (
	CategoryAuth      Category = "auth"
	CategoryRateLimit Category = "rate_limit"
	CategoryOther     Category = "other"
)

// Classify maps a completion error to its failure category.
func Classify(err error) Category {
	switch {
	case errors.Is(err, ErrAuth):
		return CategoryAuth
	case errors.Is(err, ErrRateLimited):
		return CategoryRateLimit
	default:
		return CategoryOther
	}
}
