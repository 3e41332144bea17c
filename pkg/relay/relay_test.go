package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(t *testing.T, mode string, mutate ...func(*Config)) *Relay {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)

	cfg := Config{
		Executable: exe,
		Env:        []string{childModeEnv + "=" + mode},
		Stderr:     &bytes.Buffer{},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return New(cfg, nil)
}

func TestInvokePassesContextAndEventAsTwoArguments(t *testing.T) {
	r := newTestRelay(t, "args")

	invCtx := map[string]any{"awsRequestId": "req-1", "memoryLimitInMB": "128"}
	event := map[string]any{"reqtype": "amicreate", "nested": map[string]any{"k": "v w"}}

	outcome := r.Invoke(context.Background(), invCtx, event)
	require.Equal(t, KindSuccess, outcome.Kind, outcome.Payload)

	var args []string
	require.NoError(t, json.Unmarshal([]byte(outcome.Payload), &args))
	require.Len(t, args, 2)
	assert.JSONEq(t, `{"awsRequestId":"req-1","memoryLimitInMB":"128"}`, args[0])
	assert.JSONEq(t, `{"reqtype":"amicreate","nested":{"k":"v w"}}`, args[1])
}

func TestInvokeRawKeepsArgumentsVerbatim(t *testing.T) {
	r := newTestRelay(t, "args")

	outcome := r.InvokeRaw(context.Background(), []byte(`{"a": 1}`), []byte(`"plain"`))
	require.True(t, outcome.Succeeded())

	var args []string
	require.NoError(t, json.Unmarshal([]byte(outcome.Payload), &args))
	assert.Equal(t, []string{`{"a": 1}`, `"plain"`}, args)
}

func TestInvokeClassifiesExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		kind     Kind
		payload  string
		exitCode int
	}{
		{"success concatenates fragments", "fragments", KindSuccess, "abcdef", 0},
		{"redirect keeps raw output", "redirect", KindRedirect, "https://example.com/next", 1},
		{"error output is compacted", "error", KindError, `{"errorType":"Boom","errorMessage":"a < b & c"}`, 2},
		{"error output may be any json value", "error-string", KindError, `"not found"`, 7},
		{"error output is re-encoded", "error-duplicates", KindError, `{"b":[1,2.5],"a":1,"s":"A < /"}`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := newTestRelay(t, tt.mode).Invoke(context.Background(), map[string]any{}, map[string]any{})

			assert.Equal(t, tt.kind, outcome.Kind)
			assert.Equal(t, tt.payload, outcome.Payload)
			assert.Equal(t, tt.exitCode, outcome.ExitCode)
			assert.Nil(t, outcome.Err)
			assert.Equal(t, tt.kind == KindSuccess, outcome.Succeeded())
		})
	}
}

func TestInvokeReportsMalformedErrorOutput(t *testing.T) {
	for _, mode := range []string{"malformed", "empty-error"} {
		t.Run(mode, func(t *testing.T) {
			outcome := newTestRelay(t, mode).Invoke(context.Background(), nil, nil)

			assert.Equal(t, KindMalformedOutput, outcome.Kind)
			assert.False(t, outcome.Succeeded())

			var malformed *MalformedOutputError
			require.True(t, errors.As(outcome.Err, &malformed))
			assert.Equal(t, outcome.ExitCode, malformed.ExitCode)

			var payload relayFailure
			require.NoError(t, json.Unmarshal([]byte(outcome.Payload), &payload))
			assert.Equal(t, "MalformedChildOutput", payload.ErrorType)
		})
	}
}

func TestInvokeForwardsStderrOutsideThePayload(t *testing.T) {
	var stderr bytes.Buffer
	r := newTestRelay(t, "stderr", func(c *Config) { c.Stderr = &stderr })

	outcome := r.Invoke(context.Background(), nil, nil)

	require.Equal(t, KindSuccess, outcome.Kind)
	assert.Equal(t, "visible", outcome.Payload)
	assert.NotContains(t, outcome.Payload, "secret")
	assert.Equal(t, "diagnostic secret", stderr.String())
}

func TestInvokeKillsChildOnTimeout(t *testing.T) {
	r := newTestRelay(t, "sleep", func(c *Config) { c.Timeout = 200 * time.Millisecond })

	start := time.Now()
	outcome := r.Invoke(context.Background(), nil, nil)

	assert.Equal(t, KindTimeout, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestInvokeHonoursCallerCancellation(t *testing.T) {
	r := newTestRelay(t, "sleep")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	outcome := r.Invoke(ctx, nil, nil)

	assert.Equal(t, KindCanceled, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, context.Canceled)
}

func TestInvokeKeepsOutputWhenGrandchildHoldsStdout(t *testing.T) {
	r := newTestRelay(t, "grandchild", func(c *Config) { c.WaitDelay = 300 * time.Millisecond })

	start := time.Now()
	outcome := r.Invoke(context.Background(), nil, nil)
	elapsed := time.Since(start)

	require.Equal(t, KindSuccess, outcome.Kind)
	assert.Equal(t, "ok", outcome.Payload)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestInvokeBoundsOutput(t *testing.T) {
	r := newTestRelay(t, "flood", func(c *Config) { c.MaxOutputBytes = 64 * 1024 })

	outcome := r.Invoke(context.Background(), nil, nil)

	assert.Equal(t, KindOutputTooLarge, outcome.Kind)
	assert.ErrorIs(t, outcome.Err, ErrOutputLimit)
}

func TestInvokeUnboundedOutput(t *testing.T) {
	r := newTestRelay(t, "flood", func(c *Config) { c.MaxOutputBytes = -1 })

	outcome := r.Invoke(context.Background(), nil, nil)

	require.Equal(t, KindSuccess, outcome.Kind)
	assert.Len(t, outcome.Payload, 4096*1024)
}

func TestInvokeTreatsSignalTerminationAsCrash(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("signals are not supported on windows")
	}
	outcome := newTestRelay(t, "signal").Invoke(context.Background(), nil, nil)

	assert.Equal(t, KindCrashed, outcome.Kind)
	assert.Equal(t, -1, outcome.ExitCode)
	var crash *CrashError
	assert.True(t, errors.As(outcome.Err, &crash))
}

func TestInvokeReportsSpawnFailure(t *testing.T) {
	r := New(Config{Executable: filepath.Join(t.TempDir(), "missing")}, nil)

	outcome := r.Invoke(context.Background(), nil, nil)

	assert.Equal(t, KindSpawnFailed, outcome.Kind)
	var spawnErr *SpawnError
	assert.True(t, errors.As(outcome.Err, &spawnErr))
}

func TestInvokeReportsUnencodableEvent(t *testing.T) {
	outcome := newTestRelay(t, "args").Invoke(context.Background(), nil, make(chan int))

	assert.Equal(t, KindSpawnFailed, outcome.Kind)
	assert.Error(t, outcome.Err)
}

func TestInvokeResolvesExecutableAgainstWorkDir(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	r := New(Config{
		Executable: "./" + filepath.Base(exe),
		WorkDir:    filepath.Dir(exe),
		Env:        []string{childModeEnv + "=redirect"},
	}, nil)

	outcome := r.Invoke(context.Background(), nil, nil)
	assert.Equal(t, KindRedirect, outcome.Kind)
}

func TestInvokeAppendsEnvironment(t *testing.T) {
	r := newTestRelay(t, "env", func(c *Config) {
		c.Env = append(c.Env, "RELAY_TEST_EXTRA=from-config")
	})

	outcome := r.Invoke(context.Background(), nil, nil)
	assert.Equal(t, "from-config", outcome.Payload)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()

	assert.Equal(t, DefaultExecutable, cfg.Executable)
	assert.Equal(t, int64(DefaultMaxOutputBytes), cfg.MaxOutputBytes)
	assert.Equal(t, DefaultWaitDelay, cfg.WaitDelay)
	assert.Equal(t, os.Stderr, cfg.Stderr)
}

func TestOutputBufferCapsWrites(t *testing.T) {
	buf := newOutputBuffer(5)

	n, err := buf.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = buf.Write([]byte("defg"))
	assert.ErrorIs(t, err, ErrOutputLimit)
	assert.Equal(t, 2, n)
	assert.Equal(t, "abcde", string(buf.Bytes()))
}
