package engine

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Locate and ReadState when no element matches.
	ErrNotFound = errors.New("element not found")

	// ErrActuatorUnavailable means the browser session is gone. It aborts the
	// run instead of failing a single row.
	ErrActuatorUnavailable = errors.New("actuator unavailable")
)

// Handle is a driver-specific reference to a located element.
type Handle interface{}

// Actuator applies values to a target page and reads its state. Drivers
// enforce their own timeouts and report them as errors.
type Actuator interface {
	// Navigate opens url in the session's page.
	Navigate(ctx context.Context, url string) error

	// Locate finds the element for locator or returns ErrNotFound.
	Locate(ctx context.Context, locator string) (Handle, error)

	// SetValue applies v to the element. Absent is never passed.
	SetValue(ctx context.Context, h Handle, v Value) error

	// Click clicks the element.
	Click(ctx context.Context, h Handle) error

	// ReadState returns the text content of the element for locator or
	// ErrNotFound.
	ReadState(ctx context.Context, locator string) (string, error)
}
