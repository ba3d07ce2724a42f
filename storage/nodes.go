package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/truebit/federation/wire"
)

// activeWindow is how recently a node must have heartbeat to count as
// active. Node rows themselves are kept forever so total_nodes reflects
// everything the federation has ever seen.
const activeWindow = 5 * time.Minute

// Node is the aggregator's view of one reporter.
type Node struct {
	NodeID            string
	FirstSeenAt       time.Time
	LastSeenAt        time.Time
	Status            string
	TotalTasksBucket  string
	ActiveTasksBucket string
	ContinentBucket   string
	LocationBucket    string
	HeartbeatCount    int64
}

// UpsertHeartbeat records a heartbeat. Every beat overwrites the node's
// self-reported fields wholesale, so a node that stops sending a bucket
// clears it.
func (s *Store) UpsertHeartbeat(nodeID string, msg *wire.Heartbeat, now time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO active_nodes (node_id, first_seen_at, last_seen_at, status,
		                          total_tasks_bucket, active_tasks_bucket, continent_bucket, location_bucket)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (node_id) DO UPDATE SET
			last_seen_at        = excluded.last_seen_at,
			status              = excluded.status,
			total_tasks_bucket  = excluded.total_tasks_bucket,
			active_tasks_bucket = excluded.active_tasks_bucket,
			continent_bucket    = excluded.continent_bucket,
			location_bucket     = excluded.location_bucket,
			heartbeat_count     = heartbeat_count + 1`,
		nodeID, unixMilli(now), unixMilli(now), nullable(msg.Status),
		nullable(msg.TotalTasksBucket), nullable(msg.ActiveTasksBucket),
		nullable(msg.ContinentBucket), nullable(msg.LocationBucket))
	return err
}

// GetNode returns one node, or ErrNotFound.
func (s *Store) GetNode(nodeID string) (*Node, error) {
	var (
		n                           Node
		firstSeen, lastSeen         int64
		status, totalTasks          sql.NullString
		activeTasks, continent, loc sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT node_id, first_seen_at, last_seen_at, status, total_tasks_bucket,
		       active_tasks_bucket, continent_bucket, location_bucket, heartbeat_count
		FROM active_nodes WHERE node_id = ?`, nodeID).
		Scan(&n.NodeID, &firstSeen, &lastSeen, &status, &totalTasks,
			&activeTasks, &continent, &loc, &n.HeartbeatCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	n.FirstSeenAt = time.UnixMilli(firstSeen)
	n.LastSeenAt = time.UnixMilli(lastSeen)
	n.Status = stringOrEmpty(status)
	n.TotalTasksBucket = stringOrEmpty(totalTasks)
	n.ActiveTasksBucket = stringOrEmpty(activeTasks)
	n.ContinentBucket = stringOrEmpty(continent)
	n.LocationBucket = stringOrEmpty(loc)
	return &n, nil
}

// NodeCount returns the number of nodes ever seen.
func (s *Store) NodeCount() (int64, error) {
	return queryCount(s.db, `SELECT COUNT(*) FROM active_nodes`)
}

// ActiveNodeCount returns the number of nodes heard from inside the
// activity window ending at now.
func (s *Store) ActiveNodeCount(now time.Time) (int64, error) {
	return queryCount(s.db, `SELECT COUNT(*) FROM active_nodes WHERE last_seen_at > ?`,
		unixMilli(now.Add(-activeWindow)))
}
