package navigation

import "errors"

var (
	// ErrSuperseded is returned by Transition.Wait when a newer transition
	// replaced it.
	ErrSuperseded = errors.New("navigation: transition superseded")

	// ErrClosed is returned for transitions started on, or aborted by, a
	// closed navigator.
	ErrClosed = errors.New("navigation: navigator closed")

	// ErrTooManyRedirects is committed at the root boundary when a
	// redirect chain exceeds the configured limit.
	ErrTooManyRedirects = errors.New("navigation: too many redirects")
)
