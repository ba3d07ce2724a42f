package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/truebit/federation/wire"
)

const testNodeID = "node-00000000-0000-0000-0000-000000000001"

func TestHeartbeatOverwrites(t *testing.T) {
	s := openTestStore(t)
	t0 := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.UpsertHeartbeat(testNodeID, &wire.Heartbeat{
		Status:            "idle",
		TotalTasksBucket:  "10-100",
		ActiveTasksBucket: "1-10",
		ContinentBucket:   "EU",
		LocationBucket:    "48.1,11.5",
	}, t0))

	// The next beat drops two buckets; the row must forget them.
	require.NoError(t, s.UpsertHeartbeat(testNodeID, &wire.Heartbeat{
		Status:          "computing",
		ContinentBucket: "EU",
	}, t0.Add(time.Minute)))

	node, err := s.GetNode(testNodeID)
	require.NoError(t, err)
	require.Equal(t, "computing", node.Status)
	require.Empty(t, node.TotalTasksBucket)
	require.Empty(t, node.ActiveTasksBucket)
	require.Equal(t, "EU", node.ContinentBucket)
	require.Empty(t, node.LocationBucket)
	require.EqualValues(t, 2, node.HeartbeatCount)
	require.Equal(t, t0.UnixMilli(), node.FirstSeenAt.UnixMilli())
	require.Equal(t, t0.Add(time.Minute).UnixMilli(), node.LastSeenAt.UnixMilli())
}

func TestActiveNodeWindow(t *testing.T) {
	s := openTestStore(t)
	t0 := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.UpsertHeartbeat(testNodeID, &wire.Heartbeat{Status: "idle"}, t0))

	active, err := s.ActiveNodeCount(t0.Add(4 * time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, active)

	// Nodes quietly age out of the active count but are never deleted.
	active, err = s.ActiveNodeCount(t0.Add(6 * time.Minute))
	require.NoError(t, err)
	require.Zero(t, active)

	total, err := s.NodeCount()
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
}

func TestActiveWindowBoundary(t *testing.T) {
	s := openTestStore(t)
	t0 := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.UpsertHeartbeat(testNodeID, &wire.Heartbeat{Status: "idle"}, t0))

	// Exactly five minutes old is no longer active.
	active, err := s.ActiveNodeCount(t0.Add(activeWindow))
	require.NoError(t, err)
	require.Zero(t, active)

	active, err = s.ActiveNodeCount(t0.Add(activeWindow - time.Millisecond))
	require.NoError(t, err)
	require.EqualValues(t, 1, active)
}

func TestGetNodeNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetNode(testNodeID)
	require.ErrorIs(t, err, ErrNotFound)
}
