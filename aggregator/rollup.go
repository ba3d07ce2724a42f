package aggregator

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/truebit/federation/wire"
)

// publishRollup computes one snapshot, publishes it and archives its
// scalars. The history row is written even when the publish fails, so the
// local timeline stays intact while the broker is unreachable.
func (s *Service) publishRollup(now time.Time) {
	start := time.Now()

	stats, err := s.store.GatherNetworkStats(now)
	if err != nil {
		s.log.Error("Snapshot computation failed", "err", err)
		return
	}
	if s.burns != nil {
		summary, err := s.burns.Snapshot(now)
		if err != nil {
			s.log.Warn("Burn summary unavailable", "err", err)
		} else {
			stats.TruBurns = summary
		}
	}

	payload, err := json.Marshal(wire.NewStatsEnvelope(now, stats))
	if err != nil {
		s.log.Error("Snapshot encoding failed", "err", err)
		return
	}
	if err := s.broker.Publish(wire.SubjectStatsAggregated, payload); err != nil {
		publishFailMeter.Mark(1)
		s.log.Warn("Snapshot publish failed", "err", err)
	} else {
		publishMeter.Mark(1)
	}

	if err := s.store.InsertHistory(stats, now); err != nil {
		s.log.Warn("Snapshot history write failed", "err", err)
	}

	activeNodesGauge.Update(stats.ActiveNodes)
	totalTasksGauge.Update(stats.TotalTasks)
	totalInvoicesGauge.Update(stats.TotalInvoices)
	rollupTimer.UpdateSince(start)

	s.log.Debug("Snapshot published", "activeNodes", stats.ActiveNodes, "totalTasks", stats.TotalTasks,
		"successRate", stats.SuccessRate, "elapsed", common.PrettyDuration(time.Since(start)))
}
