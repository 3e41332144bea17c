package main

import (
	"context"

	"github.com/3s-rg-codes/lambda-relay/pkg/functionRuntimeInterface"
	"github.com/3s-rg-codes/lambda-relay/pkg/lambdaevent"
)

type missingLocationError struct{}

func (missingLocationError) Error() string     { return "event has no location" }
func (missingLocationError) ErrorType() string { return "MissingLocation" }

func main() {
	f := functionRuntimeInterface.New()

	f.Ready(handler)
}

// handler answers with a redirect to the "location" field of the event.
func handler(ctx context.Context, req *functionRuntimeInterface.Request) (*functionRuntimeInterface.Response, error) {
	ev, err := lambdaevent.Decode(string(req.Event))
	if err != nil {
		return nil, err
	}
	location, ok := ev.Lookup("location")
	if !ok || location == "" {
		return nil, missingLocationError{}
	}
	return functionRuntimeInterface.Redirect(location), nil
}
