package room

import "fmt"

// SubstrateError wraps a failed call to the room/dispatch substrate. The
// reconciler logs it with room context and surfaces only a generic failure
// to external callers.
type SubstrateError struct {
	Method string
	Status int
	Body   string
	Err    error
}

func (e *SubstrateError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status != 0 {
		return fmt.Sprintf("substrate %s: status %d: %s", e.Method, e.Status, e.Body)
	}
	return fmt.Sprintf("substrate %s: %v", e.Method, e.Err)
}

func (e *SubstrateError) Unwrap() error { return e.Err }
