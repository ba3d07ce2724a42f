package aggregator

import (
	"time"
)

// dataRetention is the idle lifetime of task and invoice aggregates. Unlike
// the history retention it is not operator-tunable.
const dataRetention = 90 * 24 * time.Hour

// runCleanup prunes the stats history past its retention and drops task and
// invoice aggregates nobody has reported on in the idle lifetime. Node rows
// and the burn ledger are never pruned.
func (s *Service) runCleanup(now time.Time) {
	historyCutoff := now.AddDate(0, 0, -s.cfg.RetentionDays)
	if n, err := s.store.PruneHistory(historyCutoff); err != nil {
		s.log.Warn("History pruning failed", "err", err)
	} else if n > 0 {
		prunedMeter.Mark(n)
		s.log.Info("Pruned stats history", "rows", n, "retentionDays", s.cfg.RetentionDays)
	}

	idleCutoff := now.Add(-dataRetention)
	if n, err := s.store.PruneTasks(idleCutoff); err != nil {
		s.log.Warn("Task pruning failed", "err", err)
	} else if n > 0 {
		prunedMeter.Mark(n)
		s.log.Info("Pruned idle tasks", "rows", n)
	}
	if n, err := s.store.PruneInvoices(idleCutoff); err != nil {
		s.log.Warn("Invoice pruning failed", "err", err)
	} else if n > 0 {
		prunedMeter.Mark(n)
		s.log.Info("Pruned idle invoices", "rows", n)
	}
}
