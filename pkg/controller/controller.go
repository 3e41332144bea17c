package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	cpu "github.com/shirou/gopsutil/v4/cpu"
	mem "github.com/shirou/gopsutil/v4/mem"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/3s-rg-codes/lambda-relay/pkg/invocation"
	"github.com/3s-rg-codes/lambda-relay/pkg/stats"
	"github.com/3s-rg-codes/lambda-relay/pkg/utils"
)

// Controller serves relay invocations over gRPC for local development and testing.
type Controller struct {
	invoker      invocation.Invoker
	StatsManager *stats.StatsManager
	logger       *slog.Logger
	address      string
	function     string

	invocations atomic.Int64
	failures    atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func NewController(invoker invocation.Invoker, statsManager *stats.StatsManager, logger *slog.Logger, address, function string) *Controller {
	return &Controller{
		invoker:      invoker,
		StatsManager: statsManager,
		logger:       logger,
		address:      address,
		function:     function,
		shutdown:     make(chan struct{}),
	}
}

func (s *Controller) Invoke(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := invokeRequestFromStruct(in)
	if err != nil {
		s.logger.Warn("Rejecting invocation", "error", err)
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var invCtx any
	requestID := ""
	if len(req.Context) > 0 {
		invCtx = req.Context
		var idField struct {
			AwsRequestID string `json:"awsRequestId"`
		}
		if err := json.Unmarshal(req.Context, &idField); err != nil {
			s.logger.Debug("Invocation context has no readable request id", "error", err)
		}
		requestID = idField.AwsRequestID
	} else {
		local := invocation.Local(ctx, s.function)
		invCtx = local
		requestID = local.AwsRequestID
	}

	s.invocations.Add(1)
	s.StatsManager.Enqueue(stats.Event().Invocation(requestID).Executable(s.function).Call().Success())
	s.logger.Debug("Relaying invocation", "request_id", requestID, "event_bytes", len(req.Event))

	rec := &invocation.Recorder{}
	outcome := invocation.Dispatch(ctx, s.invoker, invCtx, req.Event, rec)
	if !outcome.Succeeded() {
		s.failures.Add(1)
	}
	s.StatsManager.Enqueue(stats.Event().Invocation(requestID).Executable(s.function).Outcome(outcome))

	payload, _, _ := rec.Result()
	resp := &InvokeResponse{
		RequestID: requestID,
		Kind:      outcome.Kind,
		Payload:   payload,
		ExitCode:  outcome.ExitCode,
		Duration:  outcome.Duration,
	}
	out, err := resp.toStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Status streams the status updates to a client.
// A node re-hitting the endpoint gets its existing channel back.
func (s *Controller) Status(in *structpb.Struct, stream grpc.ServerStream) error {
	nodeID := in.GetFields()["node_id"].GetStringValue()
	if nodeID == "" {
		return status.Error(codes.InvalidArgument, (&InvalidRequestError{Field: "node_id", Reason: "empty"}).Error())
	}

	statsChannel := s.StatsManager.GetListenerByID(nodeID)
	if statsChannel != nil {
		s.logger.Debug("Node is re-hitting the status endpoint", "node_id", nodeID)
	} else {
		statsChannel = make(chan stats.StatusUpdate, 10000)
		s.StatsManager.AddListener(nodeID, statsChannel)
	}

	for {
		select {
		case <-s.shutdown:
			return nil
		case <-stream.Context().Done():
			s.logger.Debug("Stream closed", "node_id", nodeID)
			go s.StatsManager.RemoveListenerAfterTimeout(nodeID)
			return stream.Context().Err()
		case data := <-statsChannel:
			msg, err := statusUpdateToStruct(data)
			if err != nil {
				return status.Error(codes.Internal, err.Error())
			}
			if err := stream.SendMsg(msg); err != nil {
				s.logger.Error("Error streaming data", "error", err, "node_id", nodeID)
				// Keep the update for a reconnecting node.
				select {
				case statsChannel <- data:
				default:
				}
				go s.StatsManager.RemoveListenerAfterTimeout(nodeID)
				return err
			}
			s.logger.Debug("Sent status update", "node_id", nodeID, "event", data.Event, "status", data.Status)
		}
	}
}

func (s *Controller) Metrics(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	perCPU, err := cpu.PercentWithContext(ctx, 10*time.Millisecond, true)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	virtualMem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, status.Error(codes.Unavailable, err.Error())
	}

	resp := &MetricsResponse{
		CPUPercentPerCPU: perCPU,
		UsedRAMPercent:   virtualMem.UsedPercent,
		Invocations:      s.invocations.Load(),
		Failures:         s.failures.Load(),
	}
	out, err := resp.toStruct()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// Serve registers the relay and health services on a new gRPC server and
// serves lis until ctx is done.
func (s *Controller) Serve(ctx context.Context, lis net.Listener) error {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(utils.InterceptorLogger(s.logger)),
	)

	RegisterRelayServer(grpcServer, s)

	healthcheck := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthcheck)
	healthcheck.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	go s.StatsManager.StartStreamingToListeners()

	go func() {
		<-ctx.Done()
		s.logger.Info("Shutting down gracefully...")
		s.shutdownOnce.Do(func() { close(s.shutdown) })
		healthcheck.Shutdown()
		grpcServer.GracefulStop()
	}()

	s.logger.Info("Relay server listening", "address", lis.Addr())
	return grpcServer.Serve(lis)
}

// StartServer listens on the configured address and serves until ctx is done.
func (s *Controller) StartServer(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		s.logger.Error("failed to listen", "error", err)
		return err
	}
	return s.Serve(ctx, lis)
}
