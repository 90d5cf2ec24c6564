package sim

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScheme(t *testing.T) {
	tests := []struct {
		in      string
		want    Scheme
		wantErr bool
	}{
		{"uniform", SchemeUniform, false},
		{"random", SchemeUniform, false},
		{"1", SchemeUniform, false},
		{"Weighted", SchemeWeighted, false},
		{" 2 ", SchemeWeighted, false},
		{"3", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScheme(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownScheme)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCumulativeWeights_ThreePages(t *testing.T) {
	w := CumulativeWeights(3)
	require.Len(t, w, 3)
	assert.InDelta(t, 1.0, w[0], 1e-12)
	assert.InDelta(t, 1.5, w[1], 1e-12)
	assert.InDelta(t, 1.8333333333, w[2], 1e-9)
}

func TestSelectWeightedPage_Boundaries(t *testing.T) {
	// GIVEN the table [1, 1.5, 1.833] and draws over 0..int(1.833)
	w := CumulativeWeights(3)

	// THEN each draw picks the first page whose weight exceeds it, the last
	// page catching draws no weight exceeds
	assert.Equal(t, 0, SelectWeightedPage(w, 0))
	assert.Equal(t, 1, SelectWeightedPage(w, 1))
	assert.Equal(t, 2, SelectWeightedPage(w, 2))
}

func TestRequestGenerator_Uniform_PageMatchesAddress(t *testing.T) {
	g := NewRequestGenerator(SchemeUniform, 32, 1024, rand.New(rand.NewSource(5)))
	for i := 0; i < 2000; i++ {
		addr, page := g.Next()
		require.Less(t, addr, uint32(32*1024))
		require.Equal(t, addr/1024, page)
	}
}

func TestRequestGenerator_Weighted_OnlySelectablePages(t *testing.T) {
	// GIVEN a weighted generator over 32 pages
	g := NewRequestGenerator(SchemeWeighted, 32, 1024, rand.New(rand.NewSource(5)))
	w := CumulativeWeights(32)
	selectable := map[uint32]bool{}
	for r := 0; r <= int(w[len(w)-1]); r++ {
		selectable[uint32(SelectWeightedPage(w, r))] = true
	}

	// WHEN many references are drawn
	seen := map[uint32]int{}
	for i := 0; i < 10000; i++ {
		addr, page := g.Next()
		require.Less(t, page, uint32(32))
		require.Equal(t, page, addr/1024)
		seen[page]++
	}

	// THEN every page drawn is one the weight table can select, and each of those occurs
	for page := range seen {
		assert.True(t, selectable[page], "page %d is not selectable", page)
	}
	assert.Len(t, seen, len(selectable))
	assert.Positive(t, seen[0])
}

func TestWorker_Decide_TerminatesAfterLimit(t *testing.T) {
	// GIVEN a worker limited to 3 references
	g := NewRequestGenerator(SchemeUniform, 4, 1024, rand.New(rand.NewSource(1)))
	w := NewWorker(2, g, 3)

	// WHEN it decides four times
	var replies []Message
	for i := 0; i < 4; i++ {
		replies = append(replies, w.Decide())
	}

	// THEN exactly three requests precede the terminate reply
	for _, r := range replies[:3] {
		assert.False(t, r.Terminate)
		assert.Equal(t, OrchestratorTarget, r.Target)
		assert.Equal(t, 2, r.WorkerID)
	}
	assert.True(t, replies[3].Terminate)
	assert.Equal(t, 3, w.References())
}

func TestWorker_Run_ExitsAfterTerminateReply(t *testing.T) {
	// GIVEN a worker with a limit of 2 on an open inbox
	sb := NewSwitchboard(1)
	inbox := sb.Open(0)
	g := NewRequestGenerator(SchemeUniform, 4, 1024, rand.New(rand.NewSource(1)))
	w := NewWorker(0, g, 2)
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background(), inbox, sb) }()

	// WHEN the orchestrator exchanges three times
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		r, err := sb.Exchange(ctx, 0)
		require.NoError(t, err)
		assert.False(t, r.Terminate)
	}
	r, err := sb.Exchange(ctx, 0)
	require.NoError(t, err)

	// THEN the third reply terminates and Run returns nil
	assert.True(t, r.Terminate)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("worker did not exit after its terminate reply")
	}
}

func TestWorker_Run_CancelledContext(t *testing.T) {
	sb := NewSwitchboard(1)
	inbox := sb.Open(0)
	w := NewWorker(0, NewRequestGenerator(SchemeUniform, 4, 1024, rand.New(rand.NewSource(1))), 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx, inbox, sb)

	assert.ErrorIs(t, err, context.Canceled)
}
