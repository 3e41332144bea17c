package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3s-rg-codes/lambda-relay/pkg/relay"
	"github.com/3s-rg-codes/lambda-relay/pkg/utils"
)

func TestOutcomeMapsToEvents(t *testing.T) {
	tests := []struct {
		kind   relay.Kind
		event  UpdateEvent
		status UpdateStatus
	}{
		{relay.KindSuccess, EventResponse, StatusSuccess},
		{relay.KindRedirect, EventRedirect, StatusFailed},
		{relay.KindError, EventError, StatusFailed},
		{relay.KindMalformedOutput, EventError, StatusFailed},
		{relay.KindOutputTooLarge, EventError, StatusFailed},
		{relay.KindTimeout, EventTimeout, StatusFailed},
		{relay.KindCrashed, EventDown, StatusFailed},
		{relay.KindSpawnFailed, EventDown, StatusFailed},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			su := Event().Invocation("req").Outcome(&relay.Outcome{Kind: tt.kind, ExitCode: 3, Duration: time.Second})

			assert.Equal(t, tt.event, su.Event)
			assert.Equal(t, tt.status, su.Status)
			assert.Equal(t, tt.kind, su.Kind)
			assert.Equal(t, 3, su.ExitCode)
			assert.Equal(t, "req", su.RequestID)
		})
	}
}

func TestStreamingFansOutToListeners(t *testing.T) {
	sm := NewStatsManager(utils.Discard(), time.Second, 10)
	a := make(chan StatusUpdate, 10)
	b := make(chan StatusUpdate, 10)
	sm.AddListener("a", a)
	sm.AddListener("b", b)

	go sm.StartStreamingToListeners()
	defer sm.Close()

	sm.Enqueue(Event().Invocation("req-1").Executable("echo").Call().Success())

	for _, ch := range []chan StatusUpdate{a, b} {
		select {
		case su := <-ch:
			assert.Equal(t, "req-1", su.RequestID)
			assert.Equal(t, "echo", su.Function)
			assert.Equal(t, EventCall, su.Event)
		case <-time.After(time.Second):
			t.Fatal("Timed out waiting for update")
		}
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	sm := NewStatsManager(utils.Discard(), time.Second, 1)

	sm.Enqueue(Event().Call())
	sm.Enqueue(Event().Call())

	assert.Len(t, sm.Updates, 1)
}

func TestListenerReconnectCancelsRemoval(t *testing.T) {
	sm := NewStatsManager(utils.Discard(), 200*time.Millisecond, 1)
	ch := make(chan StatusUpdate, 1)
	sm.AddListener("node", ch)

	done := make(chan struct{})
	go func() {
		sm.RemoveListenerAfterTimeout("node")
		close(done)
	}()

	require.Eventually(t, func() bool {
		sm.mu.RLock()
		defer sm.mu.RUnlock()
		_, pending := sm.toBeTerminated["node"]
		return pending
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, ch, sm.GetListenerByID("node"))
	<-done
	assert.Equal(t, ch, sm.GetListenerByID("node"))
}

func TestListenerRemovedAfterTimeout(t *testing.T) {
	sm := NewStatsManager(utils.Discard(), 20*time.Millisecond, 1)
	sm.AddListener("node", make(chan StatusUpdate, 1))

	sm.RemoveListenerAfterTimeout("node")

	assert.Nil(t, sm.GetListenerByID("node"))
}

func TestEventStrings(t *testing.T) {
	assert.Equal(t, "redirect", EventRedirect.String())
	assert.Equal(t, "failed", StatusFailed.String())
}
