package wire

import (
	"time"
)

// Fixed header of every published snapshot envelope. Consumers key on these,
// so they only ever change together with a version bump.
const (
	StatsVersion = "1.0"
	StatsType    = "network_stats"
)

// statsTimeFormat renders millisecond-precision UTC timestamps, matching
// what snapshot consumers have historically parsed.
const statsTimeFormat = "2006-01-02T15:04:05.000Z"

// NetworkStats is the data block of the aggregated snapshot: network-wide
// scalar counts plus the bucket distributions. Maps are always present,
// possibly empty; truBurns is null while the burn monitor is dormant.
type NetworkStats struct {
	ActiveNodes     int64   `json:"activeNodes"`
	TotalNodes      int64   `json:"totalNodes"`
	TotalTasks      int64   `json:"totalTasks"`
	CompletedTasks  int64   `json:"completedTasks"`
	FailedTasks     int64   `json:"failedTasks"`
	CachedTasks     int64   `json:"cachedTasks"`
	TasksLast24h    int64   `json:"tasksLast24h"`
	TotalInvoices   int64   `json:"totalInvoices"`
	InvoicesLast24h int64   `json:"invoicesLast24h"`
	SuccessRate     float64 `json:"successRate"`
	CacheHitRate    float64 `json:"cacheHitRate"`

	ExecutionTimeDistribution map[string]int64 `json:"executionTimeDistribution"`
	GasUsedDistribution       map[string]int64 `json:"gasUsedDistribution"`
	ChainDistribution         map[string]int64 `json:"chainDistribution"`
	TaskTypeDistribution      map[string]int64 `json:"taskTypeDistribution"`
	StepsComputedDistribution map[string]int64 `json:"stepsComputedDistribution"`
	MemoryUsedDistribution    map[string]int64 `json:"memoryUsedDistribution"`
	ContinentDistribution     map[string]int64 `json:"continentDistribution"`
	LocationDistribution      map[string]int64 `json:"locationDistribution"`

	TruBurns *TokenBurnSummary `json:"truBurns"`
}

// TokenBurnSummary condenses the burn ledger for snapshot consumers. Amounts
// are human units (whole tokens), already divided down from wei precision.
type TokenBurnSummary struct {
	TotalBurned       float64 `json:"totalBurned"`
	BurnCount         int     `json:"burnCount"`
	Last24hBurned     float64 `json:"last24hBurned"`
	Last7dBurned      float64 `json:"last7dBurned"`
	LastBurnTimestamp int64   `json:"lastBurnTimestamp"`
	LastBurnTxHash    string  `json:"lastBurnTxHash"`
}

// StatsEnvelope is the published wrapper around a snapshot.
type StatsEnvelope struct {
	Version   string        `json:"version"`
	Type      string        `json:"type"`
	Timestamp string        `json:"timestamp"`
	Data      *NetworkStats `json:"data"`
}

// NewStatsEnvelope stamps a snapshot for publication.
func NewStatsEnvelope(now time.Time, data *NetworkStats) *StatsEnvelope {
	return &StatsEnvelope{
		Version:   StatsVersion,
		Type:      StatsType,
		Timestamp: now.UTC().Format(statsTimeFormat),
		Data:      data,
	}
}
