package storage

import (
	"fmt"
	"math"
	"time"

	"github.com/truebit/federation/wire"
)

// GatherNetworkStats computes a publishable snapshot inside a single
// transaction, so every counter and distribution refers to the same instant.
// Burn figures are not part of the store's view; the caller attaches them.
func (s *Store) GatherNetworkStats(now time.Time) (*wire.NetworkStats, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var (
		stats     wire.NetworkStats
		dayAgo    = unixMilli(now.Add(-24 * time.Hour))
		activeCut = unixMilli(now.Add(-activeWindow))
	)
	scalars := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&stats.ActiveNodes, `SELECT COUNT(*) FROM active_nodes WHERE last_seen_at > ?`, []any{activeCut}},
		{&stats.TotalNodes, `SELECT COUNT(*) FROM active_nodes`, nil},
		{&stats.TotalTasks, `SELECT COUNT(*) FROM aggregated_tasks`, nil},
		{&stats.CompletedTasks, `SELECT COUNT(*) FROM aggregated_tasks WHERE status = 'completed'`, nil},
		{&stats.FailedTasks, `SELECT COUNT(*) FROM aggregated_tasks WHERE success = 0`, nil},
		{&stats.CachedTasks, `SELECT COUNT(*) FROM aggregated_tasks WHERE cached = 1`, nil},
		{&stats.TasksLast24h, `SELECT COUNT(*) FROM aggregated_tasks WHERE first_seen_at > ?`, []any{dayAgo}},
		{&stats.TotalInvoices, `SELECT COUNT(*) FROM aggregated_invoices`, nil},
		{&stats.InvoicesLast24h, `SELECT COUNT(*) FROM aggregated_invoices WHERE first_seen_at > ?`, []any{dayAgo}},
	}
	for _, sc := range scalars {
		n, err := queryCount(tx, sc.query, sc.args...)
		if err != nil {
			return nil, err
		}
		*sc.dst = n
	}
	if stats.TotalTasks > 0 {
		stats.SuccessRate = round1(float64(stats.CompletedTasks) / float64(stats.TotalTasks) * 100)
	}
	if stats.CompletedTasks > 0 {
		stats.CacheHitRate = round1(float64(stats.CachedTasks) / float64(stats.CompletedTasks) * 100)
	}

	dists := []struct {
		dst    *map[string]int64
		column string
		table  string
	}{
		{&stats.ExecutionTimeDistribution, "execution_time_bucket", "aggregated_tasks"},
		{&stats.GasUsedDistribution, "gas_used_bucket", "aggregated_tasks"},
		{&stats.ChainDistribution, "chain_id", "aggregated_tasks"},
		{&stats.TaskTypeDistribution, "task_type", "aggregated_tasks"},
		{&stats.StepsComputedDistribution, "steps_computed_bucket", "aggregated_invoices"},
		{&stats.MemoryUsedDistribution, "memory_used_bucket", "aggregated_invoices"},
		{&stats.ContinentDistribution, "continent_bucket", "active_nodes"},
		{&stats.LocationDistribution, "location_bucket", "active_nodes"},
	}
	for _, d := range dists {
		m, err := s.distribution(tx, d.column, d.table)
		if err != nil {
			return nil, err
		}
		*d.dst = m
	}
	return &stats, nil
}

// Distribution group-counts the non-null values of one column. The column
// and table must be in the fixed whitelist; anything else is refused with an
// empty result instead of a query.
func (s *Store) Distribution(column, table string) (map[string]int64, error) {
	return s.distribution(s.db, column, table)
}

func (s *Store) distribution(q queryer, column, table string) (map[string]int64, error) {
	if !whitelisted(column, table) {
		s.log.Error("[Security] Refusing non-whitelisted distribution query", "column", column, "table", table)
		return map[string]int64{}, nil
	}
	// Both identifiers are whitelist members at this point, never message
	// data.
	rows, err := q.Query(fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM %s WHERE %s IS NOT NULL GROUP BY %s`,
		column, table, column, column))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dist := make(map[string]int64)
	for rows.Next() {
		var (
			value string
			count int64
		)
		if err := rows.Scan(&value, &count); err != nil {
			return nil, err
		}
		dist[value] = count
	}
	return dist, rows.Err()
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
