package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitchboard_Send_UnknownTarget(t *testing.T) {
	sb := NewSwitchboard(1)
	err := sb.Send(context.Background(), Message{Target: 4, WorkerID: 4})
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestSwitchboard_Send_RoutesByTarget(t *testing.T) {
	// GIVEN two open inboxes
	sb := NewSwitchboard(1)
	in0 := sb.Open(0)
	in1 := sb.Open(1)

	// WHEN a token is sent to worker 1
	require.NoError(t, sb.Send(context.Background(), Message{Target: 1, WorkerID: 1}))

	// THEN only worker 1 sees it
	assert.Len(t, in0, 0)
	require.Len(t, in1, 1)
	assert.Equal(t, 1, (<-in1).Target)
}

func TestSwitchboard_ReceiveFrom_WrongWorkerIsProtocolError(t *testing.T) {
	sb := NewSwitchboard(2)
	require.NoError(t, sb.Send(context.Background(), Message{Target: OrchestratorTarget, WorkerID: 3}))

	_, err := sb.ReceiveFrom(context.Background(), 2)

	assert.ErrorIs(t, err, ErrProtocol)
}

func TestSwitchboard_Open_TwicePanics(t *testing.T) {
	sb := NewSwitchboard(1)
	sb.Open(0)
	assert.Panics(t, func() { sb.Open(0) })

	// after Close the id can be reused
	sb.Close(0)
	assert.NotPanics(t, func() { sb.Open(0) })
}

func TestSwitchboard_Exchange_CancelledWhileWaiting(t *testing.T) {
	// GIVEN an inbox nobody serves
	sb := NewSwitchboard(1)
	sb.Open(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// WHEN exchanging with it
	_, err := sb.Exchange(ctx, 0)

	// THEN the cancellation surfaces
	assert.ErrorIs(t, err, context.Canceled)
}
