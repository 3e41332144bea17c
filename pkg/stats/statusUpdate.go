package stats

import (
	"time"

	"github.com/3s-rg-codes/lambda-relay/pkg/relay"
)

type UpdateEvent int
type UpdateStatus int

const (
	EventCall UpdateEvent = iota
	EventResponse
	EventRedirect
	EventError
	EventTimeout
	EventDown
)

const (
	StatusSuccess UpdateStatus = iota
	StatusFailed
)

func (e UpdateEvent) String() string {
	return [...]string{"call", "response", "redirect", "error", "timeout", "down"}[e]
}

func (s UpdateStatus) String() string {
	return [...]string{"success", "failed"}[s]
}

// StatusUpdate describes one step in the life of an invocation.
type StatusUpdate struct {
	RequestID string
	Function  string
	Timestamp time.Time
	Event     UpdateEvent
	Status    UpdateStatus
	Kind      relay.Kind
	ExitCode  int
	Duration  time.Duration
}

func Event() *StatusUpdate {
	return &StatusUpdate{Timestamp: time.Now().UTC().Truncate(time.Nanosecond)}
}

func (su *StatusUpdate) Invocation(requestID string) *StatusUpdate {
	su.RequestID = requestID
	return su
}

func (su *StatusUpdate) Executable(function string) *StatusUpdate {
	su.Function = function
	return su
}

func (su *StatusUpdate) Call() *StatusUpdate {
	su.Event = EventCall
	return su
}

func (su *StatusUpdate) Success() *StatusUpdate {
	su.Status = StatusSuccess
	return su
}

func (su *StatusUpdate) Failed() *StatusUpdate {
	su.Status = StatusFailed
	return su
}

// Outcome fills the event and status from a finished invocation.
func (su *StatusUpdate) Outcome(o *relay.Outcome) *StatusUpdate {
	su.Kind = o.Kind
	su.ExitCode = o.ExitCode
	su.Duration = o.Duration

	switch o.Kind {
	case relay.KindSuccess:
		su.Event = EventResponse
	case relay.KindRedirect:
		su.Event = EventRedirect
	case relay.KindError, relay.KindMalformedOutput, relay.KindOutputTooLarge:
		su.Event = EventError
	case relay.KindTimeout:
		su.Event = EventTimeout
	default:
		su.Event = EventDown
	}

	if o.Succeeded() {
		return su.Success()
	}
	return su.Failed()
}
