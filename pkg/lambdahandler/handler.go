// Package lambdahandler connects the Lambda Go runtime to the relay.
package lambdahandler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/3s-rg-codes/lambda-relay/pkg/invocation"
)

type Handler struct {
	invoker invocation.Invoker
	logger  *slog.Logger
}

func New(invoker invocation.Invoker, logger *slog.Logger) *Handler {
	return &Handler{invoker: invoker, logger: logger}
}

// Handle relays one Lambda event. A success outcome is returned as the
// response string; every failure becomes a *invocation.FailureError whose
// message is the failure payload.
func (h *Handler) Handle(ctx context.Context, event json.RawMessage) (string, error) {
	invCtx := invocation.FromLambda(ctx)
	if len(event) == 0 {
		event = json.RawMessage("null")
	}

	rec := &invocation.Recorder{}
	outcome := invocation.Dispatch(ctx, h.invoker, invCtx, event, rec)

	h.logger.Info("Relayed invocation",
		"request_id", invCtx.AwsRequestID,
		"kind", outcome.Kind,
		"exit_code", outcome.ExitCode,
		"duration", outcome.Duration)

	return rec.Err()
}
