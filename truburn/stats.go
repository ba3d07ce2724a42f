package truburn

import (
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/truebit/federation/storage"
	"github.com/truebit/federation/wire"
)

// Snapshot condenses the on-disk ledger for inclusion in a published
// snapshot.
func (m *Monitor) Snapshot(now time.Time) (*wire.TokenBurnSummary, error) {
	burns, err := m.store.Burns()
	if err != nil {
		return nil, err
	}
	return Summarize(burns, now), nil
}

// Summarize folds a ledger into the snapshot's burn block. The grand total
// is summed in raw units and divided down once, so float drift never
// accumulates across rows.
func Summarize(burns []*storage.Burn, now time.Time) *wire.TokenBurnSummary {
	s := &wire.TokenBurnSummary{BurnCount: len(burns)}
	if len(burns) == 0 {
		return s
	}
	var (
		total = new(big.Int)
		day   = now.Add(-24 * time.Hour)
		week  = now.Add(-7 * 24 * time.Hour)
		last  *storage.Burn
	)
	for _, b := range burns {
		if v, ok := new(big.Int).SetString(b.Amount, 10); ok {
			total.Add(total, v)
		}
		if b.Timestamp.After(day) {
			s.Last24hBurned += b.AmountFormatted
		}
		if b.Timestamp.After(week) {
			s.Last7dBurned += b.AmountFormatted
		}
		if last == nil || b.BlockNumber > last.BlockNumber {
			last = b
		}
	}
	s.TotalBurned = formatUnits(total, truDecimals)
	s.LastBurnTimestamp = last.Timestamp.UnixMilli()
	s.LastBurnTxHash = last.TxHash
	return s
}

// LeaderboardEntry is one address's aggregate standing in the burn ledger.
type LeaderboardEntry struct {
	Address        string
	Count          int
	Total          *big.Int
	TotalFormatted float64
}

// Leaderboard ranks burners by raw amount, largest first. Equal totals keep
// the order in which the addresses first appeared on chain, so the ranking
// is stable across runs.
func Leaderboard(burns []*storage.Burn, top int) []LeaderboardEntry {
	var (
		totals = make(map[string]*LeaderboardEntry)
		order  []string
	)
	for _, b := range burns {
		key := strings.ToLower(b.From)
		e, ok := totals[key]
		if !ok {
			e = &LeaderboardEntry{Address: b.From, Total: new(big.Int)}
			totals[key] = e
			order = append(order, key)
		}
		e.Count++
		if v, ok := new(big.Int).SetString(b.Amount, 10); ok {
			e.Total.Add(e.Total, v)
		}
	}
	entries := make([]LeaderboardEntry, 0, len(order))
	for _, key := range order {
		e := totals[key]
		e.TotalFormatted = formatUnits(e.Total, truDecimals)
		entries = append(entries, *e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Total.Cmp(entries[j].Total) > 0
	})
	if top > 0 && len(entries) > top {
		entries = entries[:top]
	}
	return entries
}

// DailyPoint is one UTC day of burn activity.
type DailyPoint struct {
	Date       string // YYYY-MM-DD
	Burned     float64
	Cumulative float64
}

// DailyChart buckets the ledger into UTC days with a running total,
// oldest day first.
func DailyChart(burns []*storage.Burn) []DailyPoint {
	var (
		byDay = make(map[string]float64)
		days  []string
	)
	for _, b := range burns {
		day := b.Timestamp.UTC().Format("2006-01-02")
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] += b.AmountFormatted
	}
	sort.Strings(days)

	var (
		points = make([]DailyPoint, 0, len(days))
		cum    float64
	)
	for _, day := range days {
		cum += byDay[day]
		points = append(points, DailyPoint{Date: day, Burned: byDay[day], Cumulative: cum})
	}
	return points
}
