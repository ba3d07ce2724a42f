package truburn

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/truebit/federation/storage"
)

const (
	// DefaultSyncInterval is how often the monitor polls the indexer.
	DefaultSyncInterval = 5 * time.Minute

	// syncTimeout bounds one full pass over the burn addresses.
	syncTimeout = 2 * time.Minute
)

// burnTargets are the destinations that count as burning, synced in this
// order. The zero address also appears as the from side of mints, so the
// sync filters on the to side.
var burnTargets = []struct {
	addr     common.Address
	burnType string
}{
	{common.HexToAddress("0x0000000000000000000000000000000000000000"), storage.BurnTypeNull},
	{common.HexToAddress("0x000000000000000000000000000000000000dEaD"), storage.BurnTypeDead},
}

// BurnEvent is sent on the monitor's feed for every newly persisted burn.
type BurnEvent struct {
	Burn *storage.Burn
}

type burnKey struct {
	txHash   string
	logIndex int64
}

// Monitor keeps the burn ledger caught up with the indexer. It walks the
// transfer history of each burn address newest-first, stops at the last
// synced block and appends whatever is new, so repeating a sync is a no-op.
type Monitor struct {
	store    *storage.Store
	client   *Client
	interval time.Duration
	clock    mclock.Clock
	log      log.Logger

	mu     sync.Mutex // serializes sync passes, guards seen and cursor
	seen   map[burnKey]struct{}
	cursor int64

	feed  event.Feed
	scope event.SubscriptionScope

	quit chan chan error
	wg   sync.WaitGroup
}

// New builds a monitor primed with the ledger already on disk. A failure
// here leaves burn tracking disabled for the run; the rest of the
// aggregator is unaffected.
func New(store *storage.Store, client *Client, interval time.Duration, clock mclock.Clock, logger log.Logger) (*Monitor, error) {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if clock == nil {
		clock = mclock.System{}
	}
	m := &Monitor{
		store:    store,
		client:   client,
		interval: interval,
		clock:    clock,
		log:      logger.New("component", "truburn"),
		seen:     make(map[burnKey]struct{}),
		quit:     make(chan chan error),
	}
	state, err := store.BurnSyncState()
	if err != nil {
		return nil, fmt.Errorf("load burn sync cursor: %w", err)
	}
	burns, err := store.Burns()
	if err != nil {
		return nil, fmt.Errorf("load burn ledger: %w", err)
	}
	// The cursor trusts the ledger over the stored value in case a crash hit
	// between a row insert and the cursor write.
	m.cursor = state.LastBlock
	for _, b := range burns {
		m.seen[burnKey{b.TxHash, b.LogIndex}] = struct{}{}
		if b.BlockNumber > m.cursor {
			m.cursor = b.BlockNumber
		}
	}
	m.log.Info("Burn ledger loaded", "burns", len(burns), "lastBlock", m.cursor)
	return m, nil
}

// Start launches the periodic sync loop, beginning with an immediate pass.
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.loop()
}

// Stop terminates the sync loop and closes all burn subscriptions.
func (m *Monitor) Stop() error {
	errc := make(chan error)
	m.quit <- errc
	err := <-errc
	m.wg.Wait()
	m.scope.Close()
	return err
}

func (m *Monitor) loop() {
	defer m.wg.Done()

	m.SyncOnce()
	timer := m.clock.NewTimer(m.interval)
	defer timer.Stop()
	for {
		select {
		case <-timer.C():
			m.SyncOnce()
			timer.Reset(m.interval)
		case errc := <-m.quit:
			errc <- nil
			return
		}
	}
}

// SyncOnce runs one pass over all burn addresses. An address whose fetch
// fails is skipped until the next pass; the others still sync.
func (m *Monitor) SyncOnce() {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	var (
		since    = m.cursor
		maxBlock = m.cursor
		added    int
	)
	for _, target := range burnTargets {
		n, top, err := m.syncAddress(ctx, target.addr, target.burnType, since)
		added += n
		if top > maxBlock {
			maxBlock = top
		}
		if err != nil {
			m.log.Warn("Burn address sync failed", "address", target.addr, "err", err)
		}
	}
	m.cursor = maxBlock

	err := m.store.SetBurnSyncState(&storage.BurnSyncState{
		LastBlock:  m.cursor,
		TotalBurns: int64(len(m.seen)),
		LastSyncAt: time.Now(),
	})
	if err != nil {
		m.log.Warn("Failed to persist burn sync cursor", "err", err)
	}
	if added > 0 {
		m.log.Info("Burn ledger extended", "new", added, "total", len(m.seen), "lastBlock", m.cursor)
	} else {
		m.log.Debug("Burn ledger up to date", "total", len(m.seen), "lastBlock", m.cursor)
	}
}

// syncAddress pages through addr's transfer history until it reaches blocks
// at or below since, appending unseen burns. It reports how many rows were
// added and the highest block observed.
func (m *Monitor) syncAddress(ctx context.Context, addr common.Address, burnType string, since int64) (added int, top int64, err error) {
	var cursor *PageCursor
	for {
		transfers, next, err := m.client.TokenTransfers(ctx, addr, cursor)
		if err != nil {
			return added, top, err
		}
		caughtUp := false
		for _, tr := range transfers {
			if tr.BlockNumber <= since {
				caughtUp = true
				continue
			}
			// Drop transfers out of the address: mints on the zero page.
			if !strings.EqualFold(tr.To, addr.Hex()) {
				continue
			}
			if tr.BlockNumber > top {
				top = tr.BlockNumber
			}
			key := burnKey{tr.TxHash, tr.LogIndex}
			if _, ok := m.seen[key]; ok {
				continue
			}
			burn := &storage.Burn{
				TxHash:          tr.TxHash,
				LogIndex:        tr.LogIndex,
				BlockNumber:     tr.BlockNumber,
				Timestamp:       tr.Timestamp,
				From:            tr.From,
				To:              tr.To,
				Amount:          tr.Value.String(),
				AmountFormatted: formatUnits(tr.Value, tr.Decimals),
				BurnType:        burnType,
			}
			inserted, err := m.store.InsertBurn(burn)
			if err != nil {
				return added, top, err
			}
			m.seen[key] = struct{}{}
			if inserted {
				added++
				m.feed.Send(BurnEvent{Burn: burn})
			}
		}
		if caughtUp || next == nil {
			return added, top, nil
		}
		cursor = next
	}
}

// SubscribeBurns delivers every newly persisted burn to ch until the
// subscription or the monitor is closed.
func (m *Monitor) SubscribeBurns(ch chan<- BurnEvent) event.Subscription {
	return m.scope.Track(m.feed.Subscribe(ch))
}

// LastBlock returns the current sync cursor.
func (m *Monitor) LastBlock() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// KnownBurns returns the number of ledger entries the monitor has seen.
func (m *Monitor) KnownBurns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
