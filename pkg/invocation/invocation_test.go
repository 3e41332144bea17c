package invocation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3s-rg-codes/lambda-relay/pkg/relay"
)

type fakeInvoker struct {
	outcome *relay.Outcome
	mu      sync.Mutex
	calls   int
	invCtx  any
	event   any
}

func (f *fakeInvoker) Invoke(ctx context.Context, invCtx, event any) *relay.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.invCtx, f.event = invCtx, event
	return f.outcome
}

func TestDispatchReportsExactlyOnce(t *testing.T) {
	tests := []struct {
		kind      relay.Kind
		succeeded bool
	}{
		{relay.KindSuccess, true},
		{relay.KindRedirect, false},
		{relay.KindError, false},
		{relay.KindMalformedOutput, false},
		{relay.KindTimeout, false},
		{relay.KindCrashed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			invoker := &fakeInvoker{outcome: &relay.Outcome{Kind: tt.kind, Payload: "payload-" + string(tt.kind)}}
			rec := &Recorder{}

			outcome := Dispatch(context.Background(), invoker, "ctx", "event", rec)

			assert.Same(t, invoker.outcome, outcome)
			assert.Equal(t, 1, invoker.calls)
			assert.Equal(t, "ctx", invoker.invCtx)
			assert.Equal(t, "event", invoker.event)
			assert.Equal(t, 1, rec.Calls())

			payload, succeeded, ok := rec.Result()
			require.True(t, ok)
			assert.Equal(t, tt.succeeded, succeeded)
			assert.Equal(t, "payload-"+string(tt.kind), payload)
		})
	}
}

func TestRecorderKeepsFirstResult(t *testing.T) {
	rec := &Recorder{}
	rec.Fail("first")
	rec.Succeed("second")

	payload, succeeded, ok := rec.Result()
	assert.True(t, ok)
	assert.False(t, succeeded)
	assert.Equal(t, "first", payload)
	assert.Equal(t, 2, rec.Calls())
}

func TestRecorderErr(t *testing.T) {
	_, err := (&Recorder{}).Err()
	assert.ErrorIs(t, err, ErrNoResult)

	ok := &Recorder{}
	ok.Succeed("done")
	payload, err := ok.Err()
	require.NoError(t, err)
	assert.Equal(t, "done", payload)

	failed := &Recorder{}
	failed.Fail(`{"errorType":"Boom"}`)
	_, err = failed.Err()
	var failure *FailureError
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, `{"errorType":"Boom"}`, err.Error())
}

func TestFromLambda(t *testing.T) {
	lambdacontext.FunctionName = "relay-fn"
	lambdacontext.FunctionVersion = "7"
	lambdacontext.MemoryLimitInMB = 256
	lambdacontext.LogGroupName = "/aws/lambda/relay-fn"
	lambdacontext.LogStreamName = "stream"

	lc := &lambdacontext.LambdaContext{
		AwsRequestID:       "req-123",
		InvokedFunctionArn: "arn:aws:lambda:eu-central-1:123456789012:function:relay-fn",
	}
	lc.Identity.CognitoIdentityID = "identity"
	ctx := lambdacontext.NewContext(context.Background(), lc)
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	c := FromLambda(ctx)

	assert.Equal(t, "req-123", c.AwsRequestID)
	assert.Equal(t, "req-123", c.InvokeID)
	assert.Equal(t, "relay-fn", c.FunctionName)
	assert.Equal(t, "7", c.FunctionVersion)
	assert.Equal(t, "256", c.MemoryLimitInMB)
	assert.Equal(t, "/aws/lambda/relay-fn", c.LogGroupName)
	require.NotNil(t, c.Identity)
	assert.Equal(t, "identity", c.Identity.CognitoIdentityID)
	assert.Nil(t, c.ClientContext)
	assert.Greater(t, c.RemainingTimeMs, int64(50_000))

	raw, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"awsRequestId":"req-123"`)
	assert.Contains(t, string(raw), `"invokedFunctionArn":"arn:aws:lambda:eu-central-1:123456789012:function:relay-fn"`)
}

func TestLocalGeneratesRequestIDs(t *testing.T) {
	a := Local(context.Background(), "echo")
	b := Local(context.Background(), "echo")

	assert.NotEmpty(t, a.AwsRequestID)
	assert.NotEqual(t, a.AwsRequestID, b.AwsRequestID)
	assert.Equal(t, "echo", a.FunctionName)
	assert.Zero(t, a.RemainingTimeMs)
}
