package controller

import "fmt"

type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request field %s: %s", e.Field, e.Reason)
}
