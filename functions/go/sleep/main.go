package main

import (
	"context"
	"time"

	"github.com/3s-rg-codes/lambda-relay/pkg/functionRuntimeInterface"
	"github.com/3s-rg-codes/lambda-relay/pkg/lambdaevent"
)

const defaultSleep = 20 * time.Second

func main() {
	f := functionRuntimeInterface.New()

	f.Ready(handler)
}

// handler sleeps for the "duration" field of the event, or until the
// invocation deadline derived from remainingTimeMs.
func handler(ctx context.Context, req *functionRuntimeInterface.Request) (*functionRuntimeInterface.Response, error) {
	d := defaultSleep
	if ev, err := lambdaevent.Decode(string(req.Event)); err == nil {
		if v, ok := ev.Lookup("duration"); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return nil, err
			}
			d = parsed
		}
	}

	select {
	case <-time.After(d):
		return functionRuntimeInterface.Success([]byte("Finished Sleeping")), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
