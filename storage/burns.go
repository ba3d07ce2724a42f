package storage

import (
	"database/sql"
	"errors"
	"time"
)

// Burn classifications, keyed by which burn address received the tokens.
const (
	BurnTypeNull = "null"
	BurnTypeDead = "dead"
)

// Burn is one TRU transfer into a burn address. Rows are immutable once
// written and are never pruned; together they are the full burn ledger.
type Burn struct {
	TxHash          string
	LogIndex        int64
	BlockNumber     int64
	Timestamp       time.Time
	From            string
	To              string
	Amount          string // raw token units, decimal string
	AmountFormatted float64
	BurnType        string
}

// BurnSyncState is the indexer sync cursor, a single row describing how far
// the burn ledger has been caught up.
type BurnSyncState struct {
	LastBlock  int64
	TotalBurns int64
	LastSyncAt time.Time
}

// InsertBurn appends one transfer to the burn ledger. Re-inserting a
// (tx hash, log index) pair already present is a no-op; the bool return
// reports whether the row was new.
func (s *Store) InsertBurn(b *Burn) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO tru_burns (tx_hash, log_index, block_number, timestamp, from_address,
		                       to_address, amount, amount_formatted, burn_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tx_hash, log_index) DO NOTHING`,
		b.TxHash, b.LogIndex, b.BlockNumber, unixMilli(b.Timestamp), b.From,
		b.To, b.Amount, b.AmountFormatted, nullable(b.BurnType))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Burns returns the full burn ledger in chain order.
func (s *Store) Burns() ([]*Burn, error) {
	rows, err := s.db.Query(`
		SELECT tx_hash, log_index, block_number, timestamp, from_address, to_address,
		       amount, amount_formatted, burn_type
		FROM tru_burns ORDER BY block_number, log_index`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var burns []*Burn
	for rows.Next() {
		var (
			b        Burn
			ts       int64
			burnType sql.NullString
		)
		if err := rows.Scan(&b.TxHash, &b.LogIndex, &b.BlockNumber, &ts, &b.From, &b.To,
			&b.Amount, &b.AmountFormatted, &burnType); err != nil {
			return nil, err
		}
		b.Timestamp = time.UnixMilli(ts)
		b.BurnType = stringOrEmpty(burnType)
		burns = append(burns, &b)
	}
	return burns, rows.Err()
}

// BurnCount returns the number of ledger entries.
func (s *Store) BurnCount() (int64, error) {
	return queryCount(s.db, `SELECT COUNT(*) FROM tru_burns`)
}

// BurnSyncState returns the sync cursor. A database that has never synced
// yields the zero cursor rather than an error.
func (s *Store) BurnSyncState() (*BurnSyncState, error) {
	var (
		st     BurnSyncState
		syncAt sql.NullInt64
	)
	err := s.db.QueryRow(`SELECT last_block, total_burns, last_sync_at FROM burn_sync_state WHERE id = 1`).
		Scan(&st.LastBlock, &st.TotalBurns, &syncAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &BurnSyncState{}, nil
	}
	if err != nil {
		return nil, err
	}
	if syncAt.Valid {
		st.LastSyncAt = time.UnixMilli(syncAt.Int64)
	}
	return &st, nil
}

// SetBurnSyncState overwrites the sync cursor.
func (s *Store) SetBurnSyncState(st *BurnSyncState) error {
	_, err := s.db.Exec(`
		INSERT INTO burn_sync_state (id, last_block, total_burns, last_sync_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_block   = excluded.last_block,
			total_burns  = excluded.total_burns,
			last_sync_at = excluded.last_sync_at`,
		st.LastBlock, st.TotalBurns, unixMilli(st.LastSyncAt))
	return err
}
