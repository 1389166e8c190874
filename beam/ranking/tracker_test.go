package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePeer string

func (p fakePeer) ID() string { return string(p) }

func TestGetQueenPeerPrefersLowerLatencyAfterInsert(t *testing.T) {
	tr, err := NewEWMATracker(16)
	require.NoError(t, err)

	slow, fast := fakePeer("slow"), fakePeer("fast")
	tr.RegisterPeer(slow)
	tr.RegisterPeer(fast)

	// Both peers start with the same seed latency. Check the first queen
	// out for a few milliseconds and back in, so its EWMA estimate drops
	// well below the other peer's seed value.
	ctx := context.Background()
	p, err := tr.GetQueenPeer(ctx)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	tr.InsertPeer(p)

	p2, err := tr.GetQueenPeer(ctx)
	require.NoError(t, err)
	tr.InsertPeer(p2)

	// The first queen now has the lower EWMA latency, so it was popped
	// again as p2 and must remain the queen on the next pop.
	queen, err := tr.GetQueenPeer(ctx)
	require.NoError(t, err)
	require.Contains(t, []Peer{slow, fast}, queen)
	require.Equal(t, p, queen)
	tr.InsertPeer(queen)
}

func TestPenalizeQueenDemotesPeer(t *testing.T) {
	tr, err := NewEWMATracker(16)
	require.NoError(t, err)

	a, b := fakePeer("a"), fakePeer("b")
	tr.RegisterPeer(a)
	tr.RegisterPeer(b)

	tr.PenalizeQueen(a)

	queen, err := tr.GetQueenPeer(context.Background())
	require.NoError(t, err)
	require.Equal(t, b, queen)
}

func TestPopKnightsRespectsDesiredCount(t *testing.T) {
	tr, err := NewEWMATracker(16)
	require.NoError(t, err)

	for _, id := range []string{"p1", "p2", "p3", "p4"} {
		tr.RegisterPeer(fakePeer(id))
	}
	tr.SetDesiredKnightCount(2)

	knights := tr.PopKnights()
	require.Len(t, knights, 2)
}

func TestGetQueenPeerBlocksUntilPeerRegisteredOrCancelled(t *testing.T) {
	tr, err := NewEWMATracker(16)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = tr.GetQueenPeer(ctx)
	require.Error(t, err)
}

func TestGetQueenPeerWakesOnRegister(t *testing.T) {
	tr, err := NewEWMATracker(16)
	require.NoError(t, err)

	resultCh := make(chan Peer, 1)
	go func() {
		p, err := tr.GetQueenPeer(context.Background())
		if err == nil {
			resultCh <- p
		}
	}()

	time.Sleep(10 * time.Millisecond)
	tr.RegisterPeer(fakePeer("late"))

	select {
	case p := <-resultCh:
		require.Equal(t, fakePeer("late"), p)
	case <-time.After(time.Second):
		t.Fatal("GetQueenPeer did not wake on RegisterPeer")
	}
}

func TestDeregisterPeerRetainsLatencyHistory(t *testing.T) {
	tr, err := NewEWMATracker(16)
	require.NoError(t, err)

	p := fakePeer("p")
	tr.RegisterPeer(p)
	got, err := tr.GetQueenPeer(context.Background())
	require.NoError(t, err)
	tr.InsertPeer(got)

	tr.DeregisterPeer(p)
	_, ok := tr.history.Get(p.ID())
	require.True(t, ok)
}
