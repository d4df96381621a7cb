package manager

// loadTimeoutError signals that a model load did not finish within the
// bounded wait, for 504 mapping. The load keeps running in the background.
type loadTimeoutError struct{ model string }

func (e loadTimeoutError) Error() string { return "model load timed out: " + e.model }

// IsLoadTimeout reports whether err indicates a bounded-wait expiry.
func IsLoadTimeout(err error) bool {
	_, ok := err.(loadTimeoutError)
	return ok
}

// loadFailedError carries the recorded failure of a finished load attempt.
type loadFailedError struct{ msg string }

func (e loadFailedError) Error() string { return "model load failed: " + e.msg }

// IsLoadFailed reports whether err indicates a failed load attempt.
func IsLoadFailed(err error) bool {
	_, ok := err.(loadFailedError)
	return ok
}
