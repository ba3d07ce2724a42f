package aggregator

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truebit/federation/wire"
)

const nodeA = "node-00000000-0000-0000-0000-000000000001"

func TestTaskLifecycleSnapshot(t *testing.T) {
	svc, broker, store, _ := newTestService(t, nil)

	svc.dispatch(wire.SubjectTasksReceived, []byte(`{
		"nodeId": "node-00000000-0000-0000-0000-000000000001",
		"data": {"taskIdHash": "aabbccdd", "chainId": "1", "taskType": "wasm"}
	}`))
	svc.dispatch(wire.SubjectTasksCompleted, []byte(`{
		"nodeId": "node-00000000-0000-0000-0000-000000000001",
		"data": {"taskIdHash": "aabbccdd", "success": true, "executionTimeBucket": "100-500ms", "cached": false}
	}`))

	svc.publishRollup(time.Now())

	published := broker.Published()
	require.Len(t, published, 1)
	assert.Equal(t, wire.SubjectStatsAggregated, published[0].Subject)

	var env wire.StatsEnvelope
	require.NoError(t, json.Unmarshal(published[0].Data, &env))
	assert.Equal(t, wire.StatsVersion, env.Version)
	assert.Equal(t, wire.StatsType, env.Type)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, env.Timestamp)

	require.NotNil(t, env.Data)
	assert.EqualValues(t, 1, env.Data.TotalTasks)
	assert.EqualValues(t, 1, env.Data.CompletedTasks)
	assert.EqualValues(t, 0, env.Data.FailedTasks)
	assert.Equal(t, 100.0, env.Data.SuccessRate)
	assert.Equal(t, map[string]int64{"100-500ms": 1}, env.Data.ExecutionTimeDistribution)
	assert.Nil(t, env.Data.TruBurns)

	// The scalars are archived alongside the publish.
	n, err := store.HistoryCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestDuplicateReportsConverge(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)

	for i := 1; i <= 3; i++ {
		payload := fmt.Sprintf(`{
			"nodeId": "node-00000000-0000-0000-0000-00000000000%d",
			"data": {"taskIdHash": "aabbccdd", "chainId": "1", "taskType": "wasm"}
		}`, i)
		svc.dispatch(wire.SubjectTasksReceived, []byte(payload))
	}

	task, err := store.GetTask("aabbccdd")
	require.NoError(t, err)
	assert.EqualValues(t, 3, task.ReportingNodes)

	stats, err := store.GatherNetworkStats(time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.TotalTasks)
}

func TestPerNodeRateLimit(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)

	// A single reporter floods distinct tasks inside one window; only the
	// per-node budget makes it through.
	for i := 0; i < 20; i++ {
		payload := fmt.Sprintf(`{"nodeId": %q, "data": {"taskIdHash": "%08x"}}`, nodeA, i)
		svc.dispatch(wire.SubjectTasksReceived, []byte(payload))
	}

	n, err := store.TaskCount()
	require.NoError(t, err)
	assert.EqualValues(t, svc.cfg.NodeBudget, n)
}

func TestAnonymousMessageRejected(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)

	svc.dispatch(wire.SubjectTasksReceived, []byte(`{"data": {"taskIdHash": "aabbccdd"}}`))

	n, err := store.TaskCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMalformedMessagesRejected(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)

	cases := []struct {
		name    string
		subject string
		payload string
	}{
		{"not json", wire.SubjectTasksReceived, `lorem ipsum`},
		{"array envelope", wire.SubjectTasksReceived, `[1,2,3]`},
		{"bad node id", wire.SubjectTasksReceived, `{"nodeId": "node-zzz", "data": {"taskIdHash": "aabbccdd"}}`},
		{"uppercase hash", wire.SubjectTasksReceived, `{"nodeId": "` + nodeA + `", "data": {"taskIdHash": "AABBCCDD"}}`},
		{"short hash", wire.SubjectTasksReceived, `{"nodeId": "` + nodeA + `", "data": {"taskIdHash": "ab"}}`},
		{"no data", wire.SubjectTasksReceived, `{"nodeId": "` + nodeA + `"}`},
		{"bad bucket", wire.SubjectTasksCompleted, `{"nodeId": "` + nodeA + `", "data": {"taskIdHash": "aabbccdd", "executionTimeBucket": "eval()"}}`},
		{"bad location", wire.SubjectHeartbeat, `{"nodeId": "` + nodeA + `", "data": {"locationBucket": "999,0"}}`},
		{"unknown subject", "truebit.unknown", `{"nodeId": "` + nodeA + `", "data": {}}`},
	}
	for _, c := range cases {
		svc.dispatch(c.subject, []byte(c.payload))
	}

	tasks, err := store.TaskCount()
	require.NoError(t, err)
	assert.Zero(t, tasks, "no malformed message may create a task")
	nodes, err := store.NodeCount()
	require.NoError(t, err)
	assert.Zero(t, nodes, "no malformed message may create a node")
}

// Malformed traffic must not eat into a reporter's budget: validation runs
// before the limiter.
func TestValidationDoesNotChargeBudget(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)

	for i := 0; i < 15; i++ {
		svc.dispatch(wire.SubjectTasksReceived, []byte(`{"nodeId": "`+nodeA+`", "data": {"taskIdHash": "NOPE"}}`))
	}
	for i := 0; i < 10; i++ {
		payload := fmt.Sprintf(`{"nodeId": %q, "data": {"taskIdHash": "%08x"}}`, nodeA, i)
		svc.dispatch(wire.SubjectTasksReceived, []byte(payload))
	}

	n, err := store.TaskCount()
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)
}

func TestCompletionForUnknownTask(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)

	svc.dispatch(wire.SubjectTasksCompleted, []byte(`{
		"nodeId": "node-00000000-0000-0000-0000-000000000001",
		"data": {"taskIdHash": "deadbeef", "success": true}
	}`))

	n, err := store.TaskCount()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHeartbeatTracksNodes(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)

	svc.dispatch(wire.SubjectHeartbeat, []byte(`{
		"nodeId": "node-00000000-0000-0000-0000-000000000001",
		"data": {"status": "idle", "continentBucket": "EU", "locationBucket": "48.1,11.5"}
	}`))
	svc.dispatch(wire.SubjectHeartbeat, []byte(`{
		"nodeId": "node-00000000-0000-0000-0000-000000000001",
		"data": {"status": "computing"}
	}`))

	node, err := store.GetNode(nodeA)
	require.NoError(t, err)
	assert.Equal(t, "computing", node.Status)
	assert.EqualValues(t, 2, node.HeartbeatCount)

	stats, err := store.GatherNetworkStats(time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.ActiveNodes)
	assert.EqualValues(t, 1, stats.TotalNodes)
}

func TestAnonymizeNode(t *testing.T) {
	assert.Equal(t, "node-00000000", anonymizeNode(nodeA))
	assert.Equal(t, "short", anonymizeNode("short"))
}

// Totals never go backwards across snapshots while cleanup is off.
func TestSnapshotMonotonic(t *testing.T) {
	svc, _, store, _ := newTestService(t, nil)

	var prev *wire.NetworkStats
	for round := 0; round < 5; round++ {
		payload := fmt.Sprintf(`{"nodeId": %q, "data": {"taskIdHash": "%08x"}}`, nodeA, round)
		svc.dispatch(wire.SubjectTasksReceived, []byte(payload))

		stats, err := store.GatherNetworkStats(time.Now())
		require.NoError(t, err)
		if prev != nil {
			assert.GreaterOrEqual(t, stats.TotalTasks, prev.TotalTasks)
			assert.GreaterOrEqual(t, stats.TotalInvoices, prev.TotalInvoices)
			assert.GreaterOrEqual(t, stats.TotalNodes, prev.TotalNodes)
		}
		prev = stats
	}
	assert.EqualValues(t, 5, prev.TotalTasks)
}
