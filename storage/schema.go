package storage

// The federation schema. Identifier hashes arrive pre-salted from the
// reporters, so the store never sees a raw task or invoice id. All
// timestamps are epoch milliseconds.
var tables = []string{
	`CREATE TABLE IF NOT EXISTS aggregated_tasks (
		task_id_hash          TEXT PRIMARY KEY,
		first_seen_at         INTEGER NOT NULL,
		last_seen_at          INTEGER NOT NULL,
		chain_id              TEXT,
		task_type             TEXT,
		status                TEXT NOT NULL DEFAULT 'received',
		success               INTEGER,
		execution_time_bucket TEXT,
		gas_used_bucket       TEXT,
		cached                INTEGER,
		reporting_nodes       INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_last_seen ON aggregated_tasks (last_seen_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_first_seen ON aggregated_tasks (first_seen_at)`,

	`CREATE TABLE IF NOT EXISTS aggregated_invoices (
		invoice_id_hash       TEXT PRIMARY KEY,
		task_id_hash          TEXT,
		first_seen_at         INTEGER NOT NULL,
		last_seen_at          INTEGER NOT NULL,
		chain_id              TEXT,
		steps_computed_bucket TEXT,
		memory_used_bucket    TEXT,
		operation             TEXT,
		reporting_nodes       INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_last_seen ON aggregated_invoices (last_seen_at)`,
	`CREATE INDEX IF NOT EXISTS idx_invoices_first_seen ON aggregated_invoices (first_seen_at)`,

	`CREATE TABLE IF NOT EXISTS active_nodes (
		node_id             TEXT PRIMARY KEY,
		first_seen_at       INTEGER NOT NULL,
		last_seen_at        INTEGER NOT NULL,
		status              TEXT,
		total_tasks_bucket  TEXT,
		active_tasks_bucket TEXT,
		continent_bucket    TEXT,
		location_bucket     TEXT,
		heartbeat_count     INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_nodes_last_seen ON active_nodes (last_seen_at)`,

	`CREATE TABLE IF NOT EXISTS network_stats_history (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at      INTEGER NOT NULL,
		active_nodes     INTEGER NOT NULL,
		total_nodes      INTEGER NOT NULL,
		total_tasks      INTEGER NOT NULL,
		completed_tasks  INTEGER NOT NULL,
		failed_tasks     INTEGER NOT NULL,
		cached_tasks     INTEGER NOT NULL,
		tasks_last24h    INTEGER NOT NULL,
		total_invoices   INTEGER NOT NULL,
		invoices_last24h INTEGER NOT NULL,
		success_rate     REAL NOT NULL,
		cache_hit_rate   REAL NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_recorded ON network_stats_history (recorded_at)`,

	`CREATE TABLE IF NOT EXISTS tru_burns (
		tx_hash          TEXT NOT NULL,
		log_index        INTEGER NOT NULL,
		block_number     INTEGER NOT NULL,
		timestamp        INTEGER NOT NULL,
		from_address     TEXT NOT NULL,
		to_address       TEXT NOT NULL,
		amount           TEXT NOT NULL,
		amount_formatted REAL NOT NULL,
		burn_type        TEXT,
		PRIMARY KEY (tx_hash, log_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_burns_block ON tru_burns (block_number)`,
	`CREATE INDEX IF NOT EXISTS idx_burns_from ON tru_burns (from_address)`,

	`CREATE TABLE IF NOT EXISTS burn_sync_state (
		id           INTEGER PRIMARY KEY CHECK (id = 1),
		last_block   INTEGER NOT NULL DEFAULT 0,
		total_burns  INTEGER NOT NULL DEFAULT 0,
		last_sync_at INTEGER
	)`,
}

// Columns introduced after the first release. Old database files upgrade in
// place; re-adding an existing column is harmless and ignored.
var addColumns = []struct {
	table  string
	column string
	decl   string
}{
	{"aggregated_tasks", "cached", "INTEGER"},
	{"aggregated_tasks", "gas_used_bucket", "TEXT"},
	{"active_nodes", "location_bucket", "TEXT"},
	{"tru_burns", "burn_type", "TEXT"},
}

// distributionWhitelist pins the exact (column, table) identifier pairs that
// may ever appear in a grouping query. Identifiers never come from message
// data; anything outside this map is refused before query construction.
var distributionWhitelist = map[string]string{
	"execution_time_bucket": "aggregated_tasks",
	"gas_used_bucket":       "aggregated_tasks",
	"chain_id":              "aggregated_tasks",
	"task_type":             "aggregated_tasks",
	"steps_computed_bucket": "aggregated_invoices",
	"memory_used_bucket":    "aggregated_invoices",
	"continent_bucket":      "active_nodes",
	"location_bucket":       "active_nodes",
}

func whitelisted(column, table string) bool {
	return distributionWhitelist[column] == table
}
