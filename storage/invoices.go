package storage

import (
	"database/sql"
	"errors"
	"time"

	"github.com/truebit/federation/wire"
)

// Invoice is an aggregated view of one invoice across its reporters.
type Invoice struct {
	InvoiceIDHash       string
	TaskIDHash          string
	FirstSeenAt         time.Time
	LastSeenAt          time.Time
	ChainID             string
	StepsComputedBucket string
	MemoryUsedBucket    string
	Operation           string
	ReportingNodes      int64
}

// UpsertInvoice records an invoice sighting with the same first-writer-wins
// rules as tasks: repeat reports bump last_seen_at and the reporter tally
// only.
func (s *Store) UpsertInvoice(msg *wire.InvoiceCreated, now time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO aggregated_invoices (invoice_id_hash, task_id_hash, first_seen_at, last_seen_at,
		                                 chain_id, steps_computed_bucket, memory_used_bucket, operation)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (invoice_id_hash) DO UPDATE SET
			last_seen_at    = excluded.last_seen_at,
			reporting_nodes = reporting_nodes + 1`,
		msg.InvoiceIDHash, nullable(msg.TaskIDHash), unixMilli(now), unixMilli(now),
		nullable(msg.ChainID), nullable(msg.StepsComputedBucket), nullable(msg.MemoryUsedBucket),
		nullable(msg.Operation))
	return err
}

// GetInvoice returns one aggregated invoice, or ErrNotFound.
func (s *Store) GetInvoice(invoiceIDHash string) (*Invoice, error) {
	var (
		inv                 Invoice
		firstSeen, lastSeen int64
		taskID, chainID     sql.NullString
		steps, memory, op   sql.NullString
	)
	err := s.db.QueryRow(`
		SELECT invoice_id_hash, task_id_hash, first_seen_at, last_seen_at, chain_id,
		       steps_computed_bucket, memory_used_bucket, operation, reporting_nodes
		FROM aggregated_invoices WHERE invoice_id_hash = ?`, invoiceIDHash).
		Scan(&inv.InvoiceIDHash, &taskID, &firstSeen, &lastSeen, &chainID,
			&steps, &memory, &op, &inv.ReportingNodes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.FirstSeenAt = time.UnixMilli(firstSeen)
	inv.LastSeenAt = time.UnixMilli(lastSeen)
	inv.TaskIDHash = stringOrEmpty(taskID)
	inv.ChainID = stringOrEmpty(chainID)
	inv.StepsComputedBucket = stringOrEmpty(steps)
	inv.MemoryUsedBucket = stringOrEmpty(memory)
	inv.Operation = stringOrEmpty(op)
	return &inv, nil
}

// PruneInvoices deletes invoices not reported by anyone since the cutoff.
func (s *Store) PruneInvoices(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM aggregated_invoices WHERE last_seen_at < ?`, unixMilli(olderThan))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// InvoiceCount returns the number of aggregated invoices.
func (s *Store) InvoiceCount() (int64, error) {
	return queryCount(s.db, `SELECT COUNT(*) FROM aggregated_invoices`)
}
