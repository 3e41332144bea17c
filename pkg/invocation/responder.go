package invocation

import (
	"context"
	"sync"

	"github.com/3s-rg-codes/lambda-relay/pkg/relay"
)

// Responder receives the terminal result of an invocation.
// Exactly one of its methods is called per invocation.
type Responder interface {
	Succeed(payload string)
	Fail(payload string)
}

// Invoker runs one invocation. *relay.Relay implements it.
type Invoker interface {
	Invoke(ctx context.Context, invCtx, event any) *relay.Outcome
}

// Dispatch runs the invocation and reports its outcome to responder.
func Dispatch(ctx context.Context, invoker Invoker, invCtx, event any, responder Responder) *relay.Outcome {
	outcome := invoker.Invoke(ctx, invCtx, event)
	Report(outcome, responder)
	return outcome
}

// Report maps an outcome to a single responder call.
func Report(outcome *relay.Outcome, responder Responder) {
	if outcome.Succeeded() {
		responder.Succeed(outcome.Payload)
		return
	}
	responder.Fail(outcome.Payload)
}

// Recorder is a Responder that keeps the first result it receives and
// ignores later calls.
type Recorder struct {
	mu        sync.Mutex
	done      bool
	succeeded bool
	payload   string
	calls     int
}

func (r *Recorder) Succeed(payload string) {
	r.record(true, payload)
}

func (r *Recorder) Fail(payload string) {
	r.record(false, payload)
}

func (r *Recorder) record(succeeded bool, payload string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.done {
		return
	}
	r.done, r.succeeded, r.payload = true, succeeded, payload
}

// Result returns the recorded result. ok is false if nothing was reported.
func (r *Recorder) Result() (payload string, succeeded bool, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.payload, r.succeeded, r.done
}

// Calls returns how many times the recorder was reported to.
func (r *Recorder) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// Err converts the recorded result into the (payload, error) pair of a Go
// Lambda handler: failures become a *FailureError.
func (r *Recorder) Err() (string, error) {
	payload, succeeded, ok := r.Result()
	if !ok {
		return "", ErrNoResult
	}
	if !succeeded {
		return "", &FailureError{Payload: payload}
	}
	return payload, nil
}
