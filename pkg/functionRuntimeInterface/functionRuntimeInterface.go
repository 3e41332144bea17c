package functionRuntimeInterface

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/3s-rg-codes/lambda-relay/pkg/invocation"
	"github.com/3s-rg-codes/lambda-relay/pkg/utils"
)

// Exit codes understood by the relay.
const (
	ExitSuccess  = 0
	ExitRedirect = 1
	ExitError    = 2
)

type handler func(context.Context, *Request) (*Response, error)

type Request struct {
	Context    *invocation.Context
	RawContext json.RawMessage
	Event      json.RawMessage
}

type Response struct {
	Data     []byte
	redirect bool
}

func (r *Response) Redirected() bool {
	return r.redirect
}

func Success(data []byte) *Response {
	return &Response{Data: data}
}

// Redirect makes the relay report a failure whose payload is location.
func Redirect(location string) *Response {
	return &Response{Data: []byte(location), redirect: true}
}

// ErrorTyper lets handler errors choose the errorType written to the relay.
type ErrorTyper interface {
	ErrorType() string
}

type errorResponse struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

// Function is the runtime of a child executable started by the relay as
// `<executable> <context-json> <event-json>`. Stdout carries the response
// only, so all logging goes to stderr.
type Function struct {
	args   []string
	stdout io.Writer
	logger *slog.Logger
	exit   func(int)
}

func New() *Function {
	return &Function{
		args:   os.Args[1:],
		stdout: os.Stdout,
		logger: utils.SetupLogger(utils.LogConfig{
			Level:  os.Getenv("LOG_LEVEL"),
			Format: os.Getenv("LOG_FORMAT"),
			Output: os.Stderr,
		}),
		exit: os.Exit,
	}
}

func (f *Function) Logger() *slog.Logger {
	return f.logger
}

// Ready runs handler once for the invocation in the process arguments,
// writes the response and exits with the code the relay expects.
func (f *Function) Ready(h handler) {
	f.exit(f.Run(h))
}

// Run is Ready without exiting. It returns the exit code.
func (f *Function) Run(h handler) int {
	req, err := f.parseArgs()
	if err != nil {
		f.logger.Error("Invalid invocation arguments", "error", err)
		return f.writeError(&argumentError{err: err})
	}

	ctx := context.Background()
	if req.Context.RemainingTimeMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.Context.RemainingTimeMs)*time.Millisecond)
		defer cancel()
	}

	f.logger.Debug("Received request", "request_id", req.Context.AwsRequestID, "event_bytes", len(req.Event))

	resp, err := h(ctx, req)
	if err != nil {
		f.logger.Error("Function failed", "request_id", req.Context.AwsRequestID, "error", err)
		return f.writeError(err)
	}
	if resp == nil {
		resp = Success(nil)
	}

	if _, err := f.stdout.Write(resp.Data); err != nil {
		f.logger.Error("Failed to write response", "error", err)
		return ExitError
	}
	if resp.redirect {
		return ExitRedirect
	}
	return ExitSuccess
}

func (f *Function) parseArgs() (*Request, error) {
	if len(f.args) != 2 {
		return nil, fmt.Errorf("expected 2 arguments (context, event), got %d", len(f.args))
	}
	req := &Request{
		Context:    &invocation.Context{},
		RawContext: json.RawMessage(f.args[0]),
		Event:      json.RawMessage(f.args[1]),
	}
	if err := json.Unmarshal(req.RawContext, req.Context); err != nil {
		return nil, fmt.Errorf("failed to decode invocation context: %w", err)
	}
	if !json.Valid(req.Event) {
		return nil, fmt.Errorf("event is not valid JSON")
	}
	return req, nil
}

func (f *Function) writeError(err error) int {
	resp := errorResponse{ErrorType: errorType(err), ErrorMessage: err.Error()}
	// Marshal of two strings cannot fail.
	data, _ := json.Marshal(resp)
	if _, werr := f.stdout.Write(data); werr != nil {
		f.logger.Error("Failed to write error response", "error", werr)
	}
	return ExitError
}

func errorType(err error) string {
	if typer, ok := err.(ErrorTyper); ok {
		return typer.ErrorType()
	}
	name := fmt.Sprintf("%T", err)
	name = strings.TrimPrefix(name, "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

type argumentError struct {
	err error
}

func (e *argumentError) Error() string {
	return e.err.Error()
}

func (e *argumentError) ErrorType() string {
	return "InvalidArguments"
}
