package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/3s-rg-codes/lambda-relay/pkg/relay"
	"github.com/3s-rg-codes/lambda-relay/pkg/stats"
)

// InvokeRequest carries the two JSON documents handed to the child.
// An empty Context makes the server build a local invocation context.
type InvokeRequest struct {
	Context json.RawMessage
	Event   json.RawMessage
}

type InvokeResponse struct {
	RequestID string
	Kind      relay.Kind
	Payload   string
	ExitCode  int
	Duration  time.Duration
}

func (r *InvokeResponse) Succeeded() bool {
	return r.Kind == relay.KindSuccess
}

type MetricsResponse struct {
	CPUPercentPerCPU []float64
	UsedRAMPercent   float64
	Invocations      int64
	Failures         int64
}

func (r *InvokeRequest) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"context": string(r.Context),
		"event":   string(r.Event),
	})
}

func invokeRequestFromStruct(s *structpb.Struct) (*InvokeRequest, error) {
	fields := s.GetFields()
	req := &InvokeRequest{
		Context: json.RawMessage(fields["context"].GetStringValue()),
		Event:   json.RawMessage(fields["event"].GetStringValue()),
	}
	if len(req.Event) == 0 {
		req.Event = json.RawMessage("null")
	}
	if !json.Valid(req.Event) {
		return nil, &InvalidRequestError{Field: "event", Reason: "not valid JSON"}
	}
	if len(req.Context) > 0 {
		if !json.Valid(req.Context) {
			return nil, &InvalidRequestError{Field: "context", Reason: "not valid JSON"}
		}
		if trimmed := bytes.TrimSpace(req.Context); trimmed[0] != '{' {
			return nil, &InvalidRequestError{Field: "context", Reason: "not a JSON object"}
		}
	}
	return req, nil
}

func (r *InvokeResponse) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"request_id":  r.RequestID,
		"kind":        string(r.Kind),
		"payload":     r.Payload,
		"exit_code":   r.ExitCode,
		"duration_ms": r.Duration.Milliseconds(),
	})
}

func invokeResponseFromStruct(s *structpb.Struct) *InvokeResponse {
	fields := s.GetFields()
	return &InvokeResponse{
		RequestID: fields["request_id"].GetStringValue(),
		Kind:      relay.Kind(fields["kind"].GetStringValue()),
		Payload:   fields["payload"].GetStringValue(),
		ExitCode:  int(fields["exit_code"].GetNumberValue()),
		Duration:  time.Duration(fields["duration_ms"].GetNumberValue()) * time.Millisecond,
	}
}

func statusUpdateToStruct(su stats.StatusUpdate) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"request_id":  su.RequestID,
		"function":    su.Function,
		"timestamp":   su.Timestamp.Format(time.RFC3339Nano),
		"event":       su.Event.String(),
		"status":      su.Status.String(),
		"kind":        string(su.Kind),
		"exit_code":   su.ExitCode,
		"duration_ms": su.Duration.Milliseconds(),
	})
}

// StatusEvent is the client side view of a streamed stats.StatusUpdate.
type StatusEvent struct {
	RequestID string
	Function  string
	Timestamp time.Time
	Event     string
	Status    string
	Kind      relay.Kind
	ExitCode  int
	Duration  time.Duration
}

func statusEventFromStruct(s *structpb.Struct) (*StatusEvent, error) {
	fields := s.GetFields()
	ts, err := time.Parse(time.RFC3339Nano, fields["timestamp"].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("failed to parse status timestamp: %w", err)
	}
	return &StatusEvent{
		RequestID: fields["request_id"].GetStringValue(),
		Function:  fields["function"].GetStringValue(),
		Timestamp: ts,
		Event:     fields["event"].GetStringValue(),
		Status:    fields["status"].GetStringValue(),
		Kind:      relay.Kind(fields["kind"].GetStringValue()),
		ExitCode:  int(fields["exit_code"].GetNumberValue()),
		Duration:  time.Duration(fields["duration_ms"].GetNumberValue()) * time.Millisecond,
	}, nil
}

func (r *MetricsResponse) toStruct() (*structpb.Struct, error) {
	perCPU := make([]any, len(r.CPUPercentPerCPU))
	for i, p := range r.CPUPercentPerCPU {
		perCPU[i] = p
	}
	return structpb.NewStruct(map[string]any{
		"cpu_percent_percpu": perCPU,
		"used_ram_percent":   r.UsedRAMPercent,
		"invocations":        r.Invocations,
		"failures":           r.Failures,
	})
}

func metricsResponseFromStruct(s *structpb.Struct) *MetricsResponse {
	fields := s.GetFields()
	resp := &MetricsResponse{
		UsedRAMPercent: fields["used_ram_percent"].GetNumberValue(),
		Invocations:    int64(fields["invocations"].GetNumberValue()),
		Failures:       int64(fields["failures"].GetNumberValue()),
	}
	for _, v := range fields["cpu_percent_percpu"].GetListValue().GetValues() {
		resp.CPUPercentPerCPU = append(resp.CPUPercentPerCPU, v.GetNumberValue())
	}
	return resp
}
