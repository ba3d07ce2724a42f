package aggregator

import (
	"errors"
	"time"

	"github.com/truebit/federation/ratelimit"
	"github.com/truebit/federation/wire"
)

// dispatch routes one inbound message: decode and validate, then rate-limit,
// then apply the subject's store operation. Validation runs first so
// malformed payloads never consume a reporter's budget.
func (s *Service) dispatch(subject string, data []byte) {
	now := time.Now()
	messagesMeter.Mark(1)

	env, err := wire.DecodeEnvelope(data)
	if err != nil {
		invalidMeter.Mark(1)
		s.log.Debug("Dropping malformed envelope", "subject", subject, "err", err)
		return
	}

	var apply func() error
	switch subject {
	case wire.SubjectTasksReceived:
		msg := new(wire.TaskReceived)
		if err := env.DecodeInto(msg); err != nil {
			s.rejectInvalid(subject, err)
			return
		}
		apply = func() error { return s.store.UpsertTaskReceived(msg, now) }

	case wire.SubjectTasksCompleted:
		msg := new(wire.TaskCompleted)
		if err := env.DecodeInto(msg); err != nil {
			s.rejectInvalid(subject, err)
			return
		}
		apply = func() error {
			known, err := s.store.CompleteTask(msg, now)
			if err == nil && !known {
				s.log.Debug("Completion for unknown task", "hash", msg.TaskIDHash)
			}
			return err
		}

	case wire.SubjectInvoicesCreated:
		msg := new(wire.InvoiceCreated)
		if err := env.DecodeInto(msg); err != nil {
			s.rejectInvalid(subject, err)
			return
		}
		apply = func() error { return s.store.UpsertInvoice(msg, now) }

	case wire.SubjectHeartbeat:
		msg := new(wire.Heartbeat)
		if err := env.DecodeInto(msg); err != nil {
			s.rejectInvalid(subject, err)
			return
		}
		nodeID := env.NodeID
		apply = func() error { return s.store.UpsertHeartbeat(nodeID, msg, now) }

	default:
		s.log.Debug("Message on unexpected subject", "subject", subject)
		return
	}

	if err := s.limiter.Accept(env.NodeID); err != nil {
		s.rejectRateLimited(env.NodeID, subject, err)
		return
	}
	if err := apply(); err != nil {
		storeFailMeter.Mark(1)
		s.log.Error("Message handling failed", "subject", subject, "err", err)
		return
	}
	acceptedMeter.Mark(1)
}

func (s *Service) rejectInvalid(subject string, err error) {
	invalidMeter.Mark(1)
	s.log.Debug("Dropping invalid payload", "subject", subject, "err", err)
}

func (s *Service) rejectRateLimited(nodeID, subject string, err error) {
	limitedMeter.Mark(1)
	switch {
	case errors.Is(err, ratelimit.ErrNoNode):
		s.log.Warn("Rejecting message without nodeId", "subject", subject)
	case errors.Is(err, ratelimit.ErrGlobalExceeded):
		s.log.Warn("Global rate limit exceeded", "subject", subject)
	default:
		s.log.Warn("Node rate limit exceeded", "node", anonymizeNode(nodeID), "subject", subject)
	}
}

// anonymizeNode trims a reporter id to its uuid prefix, enough to correlate
// log lines without naming the node.
func anonymizeNode(nodeID string) string {
	if len(nodeID) <= 13 {
		return nodeID
	}
	return nodeID[:13]
}
