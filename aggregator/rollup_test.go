package aggregator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truebit/federation/internal/testlog"
	"github.com/truebit/federation/storage"
	"github.com/truebit/federation/truburn"
	"github.com/truebit/federation/wire"
)

// The history archive keeps growing even while the broker rejects
// publishes, so a flaky broker never leaves holes in the local timeline.
func TestRollupArchivesOnPublishFailure(t *testing.T) {
	svc, broker, store, _ := newTestService(t, nil)
	broker.setFailPublish(true)

	svc.publishRollup(time.Now())
	svc.publishRollup(time.Now())

	assert.Empty(t, broker.Published())
	n, err := store.HistoryCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestRollupAttachesBurns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(strings.ToLower(r.URL.Path), "dead") {
			w.Write([]byte(`{"items": [
				{"block_number": 20, "timestamp": "2023-11-14T12:00:00Z", "transaction_hash": "0xbeef", "log_index": 1,
				 "from": {"hash": "0x1111111111111111111111111111111111111111"},
				 "to": {"hash": "0x000000000000000000000000000000000000dEaD"},
				 "total": {"value": "2500000000000000000", "decimals": "18"}},
				{"block_number": 10, "timestamp": "2023-11-13T12:00:00Z", "transaction_hash": "0xfeed", "log_index": 0,
				 "from": {"hash": "0x1111111111111111111111111111111111111111"},
				 "to": {"hash": "0x000000000000000000000000000000000000dEaD"},
				 "total": {"value": "1000000000000000000", "decimals": "18"}}
			], "next_page_params": null}`))
			return
		}
		w.Write([]byte(`{"items": [], "next_page_params": null}`))
	}))
	defer srv.Close()

	store, err := storage.Open(filepath.Join(t.TempDir(), "aggregator.db"))
	require.NoError(t, err)
	defer store.Close()

	logger := testlog.Logger(t, log.LvlDebug)
	monitor, err := truburn.New(store, truburn.NewClient(srv.URL, DefaultConfig.BurnTokenContract),
		time.Minute, new(mclock.Simulated), logger)
	require.NoError(t, err)
	monitor.SyncOnce()

	cfg := DefaultConfig
	broker := newFakeBroker()
	svc := New(&cfg, store, broker, monitor, new(mclock.Simulated), logger)
	defer svc.Stop()

	svc.publishRollup(time.Now())

	published := broker.Published()
	require.Len(t, published, 1)

	var env wire.StatsEnvelope
	require.NoError(t, json.Unmarshal(published[0].Data, &env))
	require.NotNil(t, env.Data.TruBurns)
	assert.Equal(t, 3.5, env.Data.TruBurns.TotalBurned)
	assert.Equal(t, 2, env.Data.TruBurns.BurnCount)
	assert.Equal(t, "0xbeef", env.Data.TruBurns.LastBurnTxHash)
}

// A burn summary failure degrades the snapshot to truBurns null instead of
// blocking the publish.
func TestRollupToleratesBurnFailure(t *testing.T) {
	svc, broker, _, _ := newTestService(t, nil)

	burnStore, err := storage.Open(filepath.Join(t.TempDir(), "burns.db"))
	require.NoError(t, err)
	monitor, err := truburn.New(burnStore, truburn.NewClient("http://127.0.0.1:0", DefaultConfig.BurnTokenContract),
		time.Minute, new(mclock.Simulated), testlog.Logger(t, log.LvlDebug))
	require.NoError(t, err)
	require.NoError(t, burnStore.Close())
	svc.burns = monitor

	svc.publishRollup(time.Now())

	published := broker.Published()
	require.Len(t, published, 1)

	var env wire.StatsEnvelope
	require.NoError(t, json.Unmarshal(published[0].Data, &env))
	assert.Nil(t, env.Data.TruBurns)
}
