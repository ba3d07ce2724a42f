package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/truebit/federation/wire"
)

// Task is an aggregated view of one task across every node that reported it.
type Task struct {
	TaskIDHash          string
	FirstSeenAt         time.Time
	LastSeenAt          time.Time
	ChainID             string
	TaskType            string
	Status              string
	Success             *bool
	ExecutionTimeBucket string
	GasUsedBucket       string
	Cached              *bool
	ReportingNodes      int64
}

// UpsertTaskReceived records a task sighting. The first report creates the
// row; later reports only bump last_seen_at and the reporter tally, leaving
// first_seen_at, chain_id and task_type as the first reporter set them.
func (s *Store) UpsertTaskReceived(msg *wire.TaskReceived, now time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO aggregated_tasks (task_id_hash, first_seen_at, last_seen_at, chain_id, task_type)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (task_id_hash) DO UPDATE SET
			last_seen_at    = excluded.last_seen_at,
			reporting_nodes = reporting_nodes + 1`,
		msg.TaskIDHash, unixMilli(now), unixMilli(now), nullable(msg.ChainID), nullable(msg.TaskType))
	return err
}

// CompleteTask marks a known task completed and overwrites its outcome
// fields. Reports for tasks this aggregator never saw received are dropped;
// the bool return tells the caller whether anything matched.
func (s *Store) CompleteTask(msg *wire.TaskCompleted, now time.Time) (bool, error) {
	res, err := s.db.Exec(`
		UPDATE aggregated_tasks SET
			status                = 'completed',
			success               = ?,
			execution_time_bucket = ?,
			gas_used_bucket       = ?,
			cached                = ?,
			last_seen_at          = ?
		WHERE task_id_hash = ?`,
		nullableBool(msg.Success), nullable(msg.ExecutionTimeBucket), nullable(msg.GasUsedBucket),
		nullableBool(msg.Cached), unixMilli(now), msg.TaskIDHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetTask returns one aggregated task, or ErrNotFound.
func (s *Store) GetTask(taskIDHash string) (*Task, error) {
	row := s.db.QueryRow(`
		SELECT task_id_hash, first_seen_at, last_seen_at, chain_id, task_type, status,
		       success, execution_time_bucket, gas_used_bucket, cached, reporting_nodes
		FROM aggregated_tasks WHERE task_id_hash = ?`, taskIDHash)
	return scanTask(row)
}

func scanTask(row *sql.Row) (*Task, error) {
	var (
		t                    Task
		firstSeen, lastSeen  int64
		chainID, taskType    sql.NullString
		execBucket, gasUsedB sql.NullString
		success, cached      sql.NullBool
	)
	err := row.Scan(&t.TaskIDHash, &firstSeen, &lastSeen, &chainID, &taskType, &t.Status,
		&success, &execBucket, &gasUsedB, &cached, &t.ReportingNodes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.FirstSeenAt = time.UnixMilli(firstSeen)
	t.LastSeenAt = time.UnixMilli(lastSeen)
	t.ChainID = stringOrEmpty(chainID)
	t.TaskType = stringOrEmpty(taskType)
	t.ExecutionTimeBucket = stringOrEmpty(execBucket)
	t.GasUsedBucket = stringOrEmpty(gasUsedB)
	t.Success = boolPtr(success)
	t.Cached = boolPtr(cached)
	return &t, nil
}

// PruneTasks deletes tasks not reported by anyone since the cutoff.
func (s *Store) PruneTasks(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM aggregated_tasks WHERE last_seen_at < ?`, unixMilli(olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TaskCount returns the number of aggregated tasks.
func (s *Store) TaskCount() (int64, error) {
	return queryCount(s.db, `SELECT COUNT(*) FROM aggregated_tasks`)
}
