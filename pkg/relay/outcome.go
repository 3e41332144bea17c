package relay

import (
	"encoding/json"
	"time"
)

type Kind string

const (
	// KindSuccess: child exited 0, payload is its raw stdout.
	KindSuccess Kind = "success"
	// KindRedirect: child exited 1, payload is its raw stdout (usually a location).
	KindRedirect Kind = "redirect"
	// KindError: child exited >1, payload is its stdout JSON in compact form.
	KindError Kind = "error"

	KindMalformedOutput Kind = "malformed_output"
	KindOutputTooLarge  Kind = "output_too_large"
	KindTimeout         Kind = "timeout"
	KindCanceled        Kind = "canceled"
	KindCrashed         Kind = "crashed"
	KindSpawnFailed     Kind = "spawn_failed"
)

// Outcome is the terminal result of one invocation.
type Outcome struct {
	Kind     Kind
	Payload  string
	ExitCode int
	Duration time.Duration
	// Err is set for outcomes the relay produced itself rather than the child.
	Err error
}

// Succeeded reports whether the outcome maps to a success response.
// Every other kind is reported as a failure.
func (o *Outcome) Succeeded() bool {
	return o.Kind == KindSuccess
}

// relayFailure is the payload of failures the relay raises on its own,
// shaped like a Lambda error response.
type relayFailure struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

var relayErrorTypes = map[Kind]string{
	KindMalformedOutput: "MalformedChildOutput",
	KindOutputTooLarge:  "ChildOutputTooLarge",
	KindTimeout:         "ChildTimeout",
	KindCanceled:        "InvocationCanceled",
	KindCrashed:         "ChildCrashed",
	KindSpawnFailed:     "ChildSpawnFailed",
}

func failure(kind Kind, exitCode int, err error) *Outcome {
	// Marshal of two strings cannot fail.
	payload, _ := json.Marshal(relayFailure{ErrorType: relayErrorTypes[kind], ErrorMessage: err.Error()})
	return &Outcome{
		Kind:     kind,
		Payload:  string(payload),
		ExitCode: exitCode,
		Err:      err,
	}
}
