package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/3s-rg-codes/lambda-relay/pkg/functionRuntimeInterface"
	"github.com/3s-rg-codes/lambda-relay/pkg/lambdaevent"
)

// Result is sent back to the workflow decider.
type Result struct {
	// ResultType lets the decider pick the next step.
	ResultType   string
	ResultOutput string
	ResultErr    string
}

const randomFailure = "A random error occurred while processing the request"

type worker struct {
	logger *slog.Logger
	// fails returns a non-empty message when the activity should report failure.
	fails func() string
}

type activity func(w *worker, input string) *Result

var activities = map[string]activity{
	"amicreate": func(w *worker, input string) *Result {
		return &Result{ResultType: "amicreate", ResultOutput: "ami-abcd1234,ami-1234abcd", ResultErr: w.fails()}
	},
	"tagami": func(w *worker, input string) *Result {
		return &Result{ResultType: "tagami", ResultErr: w.fails()}
	},
	"removeold": func(w *worker, input string) *Result {
		return &Result{ResultType: "removeold", ResultOutput: "snap-efgh5678,snap-5678efgh", ResultErr: w.fails()}
	},
	"deletesnapshots": func(w *worker, input string) *Result {
		return &Result{ResultType: "deletesnapshots"}
	},
}

// handle always succeeds at the relay level. Activity failures travel in
// ResultErr so the decider sees them as data.
func (w *worker) handle(ctx context.Context, req *functionRuntimeInterface.Request) (*functionRuntimeInterface.Response, error) {
	ev, err := lambdaevent.Decode(string(req.Event))
	if err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	reqType := ev.Value("reqtype")
	reqInput := ev.Value("reqinput")

	var result *Result
	if run, ok := activities[reqType]; ok {
		w.logger.Debug("Starting simulated activity", "type", reqType, "input", reqInput)
		result = run(w, reqInput)
	} else {
		w.logger.Warn("Unknown request type", "type", reqType)
		result = &Result{ResultErr: fmt.Sprintf("error: unknown request type: %s input: %s", reqType, reqInput)}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	return functionRuntimeInterface.Success(data), nil
}

// randomFails reports an error for roughly 40% of calls to exercise decider
// failure paths.
func randomFails() string {
	if rand.IntN(10) >= 6 {
		return randomFailure
	}
	return ""
}
