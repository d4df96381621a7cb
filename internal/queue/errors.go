package queue

import "fmt"

// notFoundError signals an unknown queue item id (HTTP 404).
type notFoundError struct{ id int }

func (e notFoundError) Error() string { return fmt.Sprintf("queue item %d not found", e.id) }

// IsNotFound reports whether err refers to a missing queue item.
func IsNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// tooBusyError signals a drain already in progress or an operation on the
// currently processing item (HTTP 429).
type tooBusyError struct{ msg string }

func (e tooBusyError) Error() string { return e.msg }

// IsTooBusy reports whether err indicates the queue is busy.
func IsTooBusy(err error) bool {
	_, ok := err.(tooBusyError)
	return ok
}
