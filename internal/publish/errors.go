package publish

import (
	"fmt"
	"strings"
)

// MissingCredentialsError is returned when required configuration is missing.
type MissingCredentialsError struct {
	Provider string
	Keys     []string
}

func (e MissingCredentialsError) Error() string {
	if len(e.Keys) == 0 {
		return fmt.Sprintf("%s credentials not configured", e.Provider)
	}
	return fmt.Sprintf("%s credentials not configured (missing %s)", e.Provider, strings.Join(e.Keys, ", "))
}

// ValidationError captures provider-specific validation issues.
type ValidationError struct {
	Provider string
	Reason   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Provider, e.Reason)
}

// ThreadError reports a thread that failed partway through delivery.
// Delivered counts the units that were posted before the failure.
type ThreadError struct {
	Provider  string
	Delivered int
	Err       error
}

func (e ThreadError) Error() string {
	return fmt.Sprintf("%s: delivered %d unit(s) before failing: %v", e.Provider, e.Delivered, e.Err)
}

func (e ThreadError) Unwrap() error { return e.Err }
