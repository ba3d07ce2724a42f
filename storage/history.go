package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/truebit/federation/wire"
)

// HistoryRow is one archived network snapshot. Only the scalar counters are
// archived; distributions are recomputed from the live tables on demand.
type HistoryRow struct {
	ID              int64
	RecordedAt      time.Time
	ActiveNodes     int64
	TotalNodes      int64
	TotalTasks      int64
	CompletedTasks  int64
	FailedTasks     int64
	CachedTasks     int64
	TasksLast24h    int64
	TotalInvoices   int64
	InvoicesLast24h int64
	SuccessRate     float64
	CacheHitRate    float64
}

// InsertHistory archives the scalar half of a published snapshot.
func (s *Store) InsertHistory(stats *wire.NetworkStats, now time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO network_stats_history (recorded_at, active_nodes, total_nodes, total_tasks,
			completed_tasks, failed_tasks, cached_tasks, tasks_last24h, total_invoices,
			invoices_last24h, success_rate, cache_hit_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		unixMilli(now), stats.ActiveNodes, stats.TotalNodes, stats.TotalTasks,
		stats.CompletedTasks, stats.FailedTasks, stats.CachedTasks, stats.TasksLast24h,
		stats.TotalInvoices, stats.InvoicesLast24h, stats.SuccessRate, stats.CacheHitRate)
	return err
}

// LatestHistory returns the most recent archived snapshot, or ErrNotFound
// when nothing has been archived yet.
func (s *Store) LatestHistory() (*HistoryRow, error) {
	var (
		row      HistoryRow
		recorded int64
	)
	err := s.db.QueryRow(`
		SELECT id, recorded_at, active_nodes, total_nodes, total_tasks, completed_tasks,
		       failed_tasks, cached_tasks, tasks_last24h, total_invoices, invoices_last24h,
		       success_rate, cache_hit_rate
		FROM network_stats_history ORDER BY recorded_at DESC, id DESC LIMIT 1`).
		Scan(&row.ID, &recorded, &row.ActiveNodes, &row.TotalNodes, &row.TotalTasks,
			&row.CompletedTasks, &row.FailedTasks, &row.CachedTasks, &row.TasksLast24h,
			&row.TotalInvoices, &row.InvoicesLast24h, &row.SuccessRate, &row.CacheHitRate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	row.RecordedAt = time.UnixMilli(recorded)
	return &row, nil
}

// PruneHistory deletes snapshots recorded before the cutoff.
func (s *Store) PruneHistory(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM network_stats_history WHERE recorded_at < ?`, unixMilli(olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// HistoryCount returns the number of archived snapshots.
func (s *Store) HistoryCount() (int64, error) {
	return queryCount(s.db, `SELECT COUNT(*) FROM network_stats_history`)
}
