package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconnectSweepDrainsPendingBacklog(t *testing.T) {
	c, remote, local := newTestCoordinator(t)
	ctx := context.Background()

	// Go offline, then save: the write lands locally and queues for cloud.
	remote.putErr = fmt.Errorf("%w: network is unreachable", ErrTransient)
	m := testManuscript("ms-1", 2, time.Now())
	res := c.EnqueueSave(ctx, m).Wait()
	require.NoError(t, res.Err)
	require.False(t, res.RemoteOK)
	require.Contains(t, c.Snapshot().PendingSyncIDs, m.ID)
	_, cached := local.stored(m.ID)
	require.True(t, cached)

	c.SetOnline(ctx, false)
	assert.False(t, c.Snapshot().CloudAvailable)

	remote.mu.Lock()
	remote.putErr = nil
	remote.mu.Unlock()

	c.SetOnline(ctx, true)

	assert.Eventually(t, func() bool {
		if _, ok := remote.stored(m.ID); !ok {
			return false
		}
		snap := c.Snapshot()
		return snap.CloudAvailable && snap.PendingSyncCount == 0
	}, 2*time.Second, 10*time.Millisecond, "reconnecting must drain the pending backlog")
}

func TestSetOnlineWithoutTransitionDoesNotSweep(t *testing.T) {
	c, remote, _ := newTestCoordinator(t)
	ctx := context.Background()

	c.state.markPending("ms-ghost")
	c.SetOnline(ctx, true) // already online, no transition

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, remote.putCount())
}

func TestSnapshotIsACopy(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	c.state.markPending("ms-1")
	c.state.recordConflict(ConflictRecord{ManuscriptID: "ms-1", DetectedAt: time.Now()})

	snap := c.Snapshot()
	require.Equal(t, []string{"ms-1"}, snap.PendingSyncIDs)
	require.Len(t, snap.Conflicts, 1)

	snap.PendingSyncIDs[0] = "mutated"
	snap.Conflicts[0].ManuscriptID = "mutated"

	again := c.Snapshot()
	assert.Equal(t, []string{"ms-1"}, again.PendingSyncIDs)
	assert.Equal(t, "ms-1", again.Conflicts[0].ManuscriptID)
}

func TestSnapshotCountsMatchIDs(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	for i := 0; i < 3; i++ {
		c.state.markPending(fmt.Sprintf("ms-%d", i))
	}
	snap := c.Snapshot()
	assert.Equal(t, 3, snap.PendingSyncCount)
	assert.Len(t, snap.PendingSyncIDs, 3)
	assert.Equal(t, []string{"ms-0", "ms-1", "ms-2"}, snap.PendingSyncIDs, "ids come out sorted")
}

func TestCoordinatorLoadsPersistedTombstones(t *testing.T) {
	remote := newFakeRemote()
	local := newFakeLocal()
	local.tombstones["ms-dead"] = time.Now()
	local.docs["ms-dead"] = testManuscript("ms-dead", 1, time.Now())

	c, err := NewCoordinator(remote, local)
	require.NoError(t, err)
	c.saver.minInterval = 0

	assert.True(t, c.state.hasTombstone("ms-dead"))
	res := c.LoadMergedLibrary(context.Background())
	assert.NotContains(t, manuscriptIDs(res), "ms-dead")
}
