package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultExecutable = "./gocode-amd64"
	// DefaultMaxOutputBytes matches the synchronous Lambda response limit.
	DefaultMaxOutputBytes = 6 * 1024 * 1024
	DefaultWaitDelay      = 2 * time.Second
)

type Config struct {
	// Executable is the child binary. Relative paths are resolved against WorkDir.
	Executable string `env:"RELAY_EXECUTABLE"`
	WorkDir    string `env:"RELAY_WORKDIR"`
	// Env is appended to the inherited environment of the child.
	Env []string
	// Stderr receives the child's stderr unbuffered. Defaults to os.Stderr.
	Stderr io.Writer
	// MaxOutputBytes bounds the stdout buffer. Zero uses DefaultMaxOutputBytes,
	// a negative value disables the bound.
	MaxOutputBytes int64 `env:"RELAY_MAX_OUTPUT_BYTES"`
	// Timeout bounds one invocation in addition to the caller's deadline. Zero means none.
	Timeout time.Duration `env:"RELAY_TIMEOUT"`
	// WaitDelay bounds how long stdout may stay open after the child exited,
	// e.g. when a grandchild inherited it.
	WaitDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.Executable == "" {
		c.Executable = DefaultExecutable
	}
	if c.Stderr == nil {
		c.Stderr = os.Stderr
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = DefaultWaitDelay
	}
	return c
}

// Relay runs one child process per invocation and classifies its result.
// It holds no per-invocation state and is safe for concurrent use.
type Relay struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Relay{cfg: cfg.withDefaults(), logger: logger}
}

func (r *Relay) Config() Config {
	return r.cfg
}

// Invoke serializes invCtx and event to JSON and runs the child with them.
func (r *Relay) Invoke(ctx context.Context, invCtx, event any) *Outcome {
	ctxJSON, err := json.Marshal(invCtx)
	if err != nil {
		return failure(KindSpawnFailed, 0, fmt.Errorf("failed to encode invocation context: %w", err))
	}
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return failure(KindSpawnFailed, 0, fmt.Errorf("failed to encode event: %w", err))
	}
	return r.InvokeRaw(ctx, ctxJSON, eventJSON)
}

// InvokeRaw runs the child as `<executable> <invCtx> <event>` with both
// arguments already JSON encoded.
func (r *Relay) InvokeRaw(ctx context.Context, invCtx, event []byte) *Outcome {
	start := time.Now()
	outcome := r.run(ctx, invCtx, event)
	outcome.Duration = time.Since(start)

	r.logger.Debug("Invocation finished",
		"kind", outcome.Kind,
		"exit_code", outcome.ExitCode,
		"payload_bytes", len(outcome.Payload),
		"duration", outcome.Duration)
	if outcome.Err != nil {
		r.logger.Warn("Invocation failed in relay", "kind", outcome.Kind, "error", outcome.Err)
	}
	return outcome
}

func (r *Relay) run(ctx context.Context, invCtx, event []byte) *Outcome {
	runCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return failure(KindSpawnFailed, 0, &SpawnError{Executable: r.cfg.Executable, Err: err})
	}
	defer stdoutR.Close()

	// The group context is cancelled when the reader gives up, which kills the child.
	g, gctx := errgroup.WithContext(runCtx)

	cmd := exec.CommandContext(gctx, r.cfg.Executable, string(invCtx), string(event))
	cmd.Dir = r.cfg.WorkDir
	if len(r.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), r.cfg.Env...)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = r.cfg.Stderr
	cmd.WaitDelay = r.cfg.WaitDelay

	r.logger.Debug("Spawning child", "executable", r.cfg.Executable, "dir", r.cfg.WorkDir)

	err = cmd.Start()
	// The child owns the write end now; our copy must go so the reader sees EOF.
	stdoutW.Close()
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return interrupted(ctxErr, -1)
		}
		return failure(KindSpawnFailed, 0, &SpawnError{Executable: r.cfg.Executable, Err: err})
	}

	buf := newOutputBuffer(r.cfg.MaxOutputBytes)
	var waitErr error

	g.Go(func() error {
		_, err := io.Copy(buf, stdoutR)
		if errors.Is(err, os.ErrDeadlineExceeded) {
			r.logger.Warn("Child stdout still open after exit, truncating", "wait_delay", r.cfg.WaitDelay)
			return nil
		}
		return err
	})
	g.Go(func() error {
		waitErr = cmd.Wait()
		// Bound the reader in case a grandchild still holds stdout open.
		_ = stdoutR.SetReadDeadline(time.Now().Add(r.cfg.WaitDelay))
		return nil
	})
	readErr := g.Wait()

	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	switch {
	case errors.Is(readErr, ErrOutputLimit):
		return failure(KindOutputTooLarge, exitCode,
			fmt.Errorf("%w: more than %d bytes", ErrOutputLimit, r.cfg.MaxOutputBytes))
	case runCtx.Err() != nil && exitCode < 0:
		// Killed by us. A child that exited on its own before the kill keeps its result.
		return interrupted(runCtx.Err(), exitCode)
	case readErr != nil:
		return failure(KindCrashed, exitCode, fmt.Errorf("failed to read child output: %w", readErr))
	}

	if cmd.ProcessState == nil {
		return failure(KindCrashed, exitCode, fmt.Errorf("failed to wait for child: %w", waitErr))
	}
	if waitErr != nil {
		r.logger.Debug("Child wait returned", "error", waitErr)
	}

	return classify(exitCode, cmd.ProcessState.String(), buf.Bytes())
}

func interrupted(ctxErr error, exitCode int) *Outcome {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return failure(KindTimeout, exitCode, fmt.Errorf("child did not exit before deadline: %w", ctxErr))
	}
	return failure(KindCanceled, exitCode, fmt.Errorf("invocation canceled: %w", ctxErr))
}

// classify maps an exit code and the complete stdout to an outcome.
func classify(exitCode int, state string, output []byte) *Outcome {
	switch {
	case exitCode < 0:
		return failure(KindCrashed, exitCode, &CrashError{State: state})
	case exitCode > 1:
		payload, err := reencode(output)
		if err != nil {
			return failure(KindMalformedOutput, exitCode,
				&MalformedOutputError{ExitCode: exitCode, Output: string(output), Err: err})
		}
		return &Outcome{Kind: KindError, Payload: string(payload), ExitCode: exitCode}
	case exitCode == 1:
		return &Outcome{Kind: KindRedirect, Payload: string(output), ExitCode: exitCode}
	default:
		return &Outcome{Kind: KindSuccess, Payload: string(output), ExitCode: exitCode}
	}
}
