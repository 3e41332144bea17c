package invocation

import "errors"

var ErrNoResult = errors.New("invocation: no result was reported")

// FailureError carries a failure payload. Its message is the payload verbatim
// so the platform reports it unchanged as the error message.
type FailureError struct {
	Payload string
}

func (e *FailureError) Error() string {
	return e.Payload
}
