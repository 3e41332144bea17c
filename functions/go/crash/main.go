package main

import (
	"context"
	"time"

	"github.com/3s-rg-codes/lambda-relay/pkg/functionRuntimeInterface"
)

func main() {
	f := functionRuntimeInterface.New()

	f.Ready(handler)
}

// handler crashes the process on purpose. The Go runtime exits with 2 and
// prints the panic to stderr, so the relay reports malformed output.
func handler(ctx context.Context, req *functionRuntimeInterface.Request) (*functionRuntimeInterface.Response, error) {
	time.Sleep(2 * time.Second)
	panic("crash")
}
