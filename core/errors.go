package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSuperseded marks a fetch result that arrived after a newer fetch was started
	// or after the subscription was closed. It never reaches a subscriber.
	ErrSuperseded = errors.New("fetch result superseded")

	// ErrClosed is returned when operating on a closed subscription or coordinator.
	ErrClosed = errors.New("subscription closed")
)

// FetchError is the only error published to subscribers.
type FetchError struct {
	Key string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %q failed: %v", e.Key, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// asFetchError normalizes err into a *FetchError for key.
func asFetchError(key string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Key: key, Err: err}
}

// panicError wraps a value recovered from a panicking fetch function.
type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("fetch panicked: %v", e.value)
}
