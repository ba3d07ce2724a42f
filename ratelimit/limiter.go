// Package ratelimit enforces the inbound federation message budget. Two
// fixed windows guard the aggregator: a global one shared by the whole
// fabric and one per reporter. Anonymous messages are charged against the
// global window and then rejected, so flooding without a nodeId cannot
// bypass the per-reporter tier.
package ratelimit

import (
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
)

const (
	DefaultWindow       = time.Second
	DefaultNodeBudget   = 10
	DefaultGlobalBudget = 1000

	// Reporter windows idle for staleWindows-times the width are dropped by
	// the periodic sweep; a live reporter re-creates its entry on the next
	// message at the cost of one map insert.
	staleWindows  = 10
	sweepInterval = time.Minute
)

// Rejection reasons, distinguishable so the router can log and meter them
// separately.
var (
	ErrGlobalExceeded = errors.New("global rate limit exceeded")
	ErrNoNode         = errors.New("message without nodeId")
	ErrNodeExceeded   = errors.New("node rate limit exceeded")
)

// Config tunes the limiter. Zero fields fall back to the defaults.
type Config struct {
	Window       time.Duration // width of both windows
	NodeBudget   int           // messages per reporter per window
	GlobalBudget int           // messages fabric-wide per window
}

type window struct {
	count int
	start mclock.AbsTime
}

// charge rolls the window forward to now and charges one message against
// it, reporting whether the budget still holds. Windows reset to (1, now)
// once their width has elapsed; rejected messages keep counting so a flood
// stays rejected until the next reset.
func (w *window) charge(now mclock.AbsTime, width time.Duration, budget int) bool {
	if now.Sub(w.start) > width {
		w.start = now
		w.count = 1
	} else {
		w.count++
	}
	return w.count <= budget
}

// Limiter is the two-tier message limiter. State is process-local and never
// persisted: a restart grants fresh budgets, acceptable because the limits
// are an operational defense, not accounting.
type Limiter struct {
	width        time.Duration
	nodeBudget   int
	globalBudget int

	clock mclock.Clock
	log   log.Logger

	mu     sync.Mutex
	global window
	nodes  map[string]*window

	closeCh   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a limiter and starts its background sweep. The clock is
// injectable so tests can drive window expiry deterministically.
func New(cfg Config, clock mclock.Clock, logger log.Logger) *Limiter {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.NodeBudget <= 0 {
		cfg.NodeBudget = DefaultNodeBudget
	}
	if cfg.GlobalBudget <= 0 {
		cfg.GlobalBudget = DefaultGlobalBudget
	}
	l := &Limiter{
		width:        cfg.Window,
		nodeBudget:   cfg.NodeBudget,
		globalBudget: cfg.GlobalBudget,
		clock:        clock,
		log:          logger,
		nodes:        make(map[string]*window),
		closeCh:      make(chan struct{}),
	}
	l.wg.Add(1)
	go l.sweepLoop()
	return l
}

// Accept charges one message from the given reporter against both tiers,
// returning nil if it may proceed. The global window is charged first, even
// for anonymous messages, so it remains the fabric-wide circuit breaker.
func (l *Limiter) Accept(nodeID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if !l.global.charge(now, l.width, l.globalBudget) {
		return ErrGlobalExceeded
	}
	if nodeID == "" {
		return ErrNoNode
	}
	w, ok := l.nodes[nodeID]
	if !ok {
		w = &window{start: now}
		l.nodes[nodeID] = w
	}
	if !w.charge(now, l.width, l.nodeBudget) {
		return ErrNodeExceeded
	}
	return nil
}

// TrackedNodes returns the number of reporter windows currently held.
func (l *Limiter) TrackedNodes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.nodes)
}

// Close stops the background sweep. The limiter remains usable afterwards,
// it just stops shedding idle entries.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.closeCh) })
	l.wg.Wait()
}

func (l *Limiter) sweepLoop() {
	defer l.wg.Done()

	timer := l.clock.NewTimer(sweepInterval)
	defer timer.Stop()
	for {
		select {
		case <-timer.C():
			l.sweep()
			timer.Reset(sweepInterval)
		case <-l.closeCh:
			return
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	ttl := time.Duration(staleWindows) * l.width
	dropped := 0
	for id, w := range l.nodes {
		if now.Sub(w.start) > ttl {
			delete(l.nodes, id)
			dropped++
		}
	}
	if dropped > 0 {
		l.log.Debug("Swept idle reporter windows", "dropped", dropped, "tracked", len(l.nodes))
	}
}
