package aggregator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truebit/federation/storage"
	"github.com/truebit/federation/wire"
)

func TestCleanupRetention(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)
	now := time.Now()

	// One history row past the configured retention, one inside it.
	require.NoError(t, store.InsertHistory(&wire.NetworkStats{}, now.AddDate(0, 0, -svc.cfg.RetentionDays-1)))
	require.NoError(t, store.InsertHistory(&wire.NetworkStats{}, now.AddDate(0, 0, -1)))

	// One idle task and invoice, one live pair.
	require.NoError(t, store.UpsertTaskReceived(&wire.TaskReceived{TaskIDHash: "aabbccdd"}, now.AddDate(0, 0, -91)))
	require.NoError(t, store.UpsertTaskReceived(&wire.TaskReceived{TaskIDHash: "eeff0011"}, now))
	require.NoError(t, store.UpsertInvoice(&wire.InvoiceCreated{InvoiceIDHash: "11223344"}, now.AddDate(0, 0, -91)))
	require.NoError(t, store.UpsertInvoice(&wire.InvoiceCreated{InvoiceIDHash: "55667788"}, now))

	// Nodes and burns are exempt however stale they get.
	require.NoError(t, store.UpsertHeartbeat("node-00000000-0000-0000-0000-000000000001",
		&wire.Heartbeat{Status: "idle"}, now.AddDate(0, 0, -200)))
	_, err := store.InsertBurn(&storage.Burn{
		TxHash: "0xdead", LogIndex: 0, BlockNumber: 5, Timestamp: now.AddDate(0, 0, -200),
		From: "0x1111111111111111111111111111111111111111", Amount: "1", BurnType: storage.BurnTypeDead,
	})
	require.NoError(t, err)

	svc.runCleanup(now)

	histories, err := store.HistoryCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, histories)
	tasks, err := store.TaskCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, tasks)
	invoices, err := store.InvoiceCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, invoices)

	_, err = store.GetTask("aabbccdd")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetTask("eeff0011")
	assert.NoError(t, err)

	nodes, err := store.NodeCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, nodes)
	burns, err := store.BurnCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, burns)
}

// Task lifetime keys off the last report, not the first. An old task that
// nodes keep mentioning stays around.
func TestCleanupKeepsReportedTasks(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)
	now := time.Now()

	require.NoError(t, store.UpsertTaskReceived(&wire.TaskReceived{TaskIDHash: "aabbccdd"}, now.AddDate(0, 0, -200)))
	require.NoError(t, store.UpsertTaskReceived(&wire.TaskReceived{TaskIDHash: "aabbccdd"}, now))

	svc.runCleanup(now)

	task, err := store.GetTask("aabbccdd")
	require.NoError(t, err)
	assert.EqualValues(t, 2, task.ReportingNodes)
}
