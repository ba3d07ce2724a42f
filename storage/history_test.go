package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/truebit/federation/wire"
)

func TestHistoryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	t0 := time.UnixMilli(1_700_000_000_000)

	require.NoError(t, s.InsertHistory(&wire.NetworkStats{
		ActiveNodes:    3,
		TotalNodes:     7,
		TotalTasks:     100,
		CompletedTasks: 80,
		FailedTasks:    5,
		CachedTasks:    20,
		TasksLast24h:   12,
		TotalInvoices:  40,
		SuccessRate:    80.0,
		CacheHitRate:   25.0,
	}, t0))

	row, err := s.LatestHistory()
	require.NoError(t, err)
	require.Equal(t, t0.UnixMilli(), row.RecordedAt.UnixMilli())
	require.EqualValues(t, 3, row.ActiveNodes)
	require.EqualValues(t, 100, row.TotalTasks)
	require.EqualValues(t, 80, row.CompletedTasks)
	require.Equal(t, 80.0, row.SuccessRate)
	require.Equal(t, 25.0, row.CacheHitRate)
}

func TestLatestHistoryEmpty(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LatestHistory()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPruneHistory(t *testing.T) {
	s := openTestStore(t)
	t0 := time.UnixMilli(1_700_000_000_000)

	for day := 0; day < 5; day++ {
		require.NoError(t, s.InsertHistory(&wire.NetworkStats{}, t0.AddDate(0, 0, day)))
	}

	pruned, err := s.PruneHistory(t0.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.EqualValues(t, 3, pruned)

	n, err := s.HistoryCount()
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	// The surviving rows are the newest ones.
	row, err := s.LatestHistory()
	require.NoError(t, err)
	require.Equal(t, t0.AddDate(0, 0, 4).UnixMilli(), row.RecordedAt.UnixMilli())
}
