package main

import (
	"context"

	"github.com/3s-rg-codes/lambda-relay/pkg/functionRuntimeInterface"
)

func main() {
	f := functionRuntimeInterface.New()

	f.Ready(func(ctx context.Context, req *functionRuntimeInterface.Request) (*functionRuntimeInterface.Response, error) {
		return functionRuntimeInterface.Success(req.Event), nil
	})
}
