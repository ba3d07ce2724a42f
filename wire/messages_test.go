package wire

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{
		"nodeId": "node-00000000-0000-0000-0000-000000000001",
		"data": {"taskIdHash": "aabbccdd", "chainId": "1"},
		"futureField": 42
	}`))
	require.NoError(t, err)
	assert.Equal(t, "node-00000000-0000-0000-0000-000000000001", env.NodeID)

	var msg TaskReceived
	require.NoError(t, env.DecodeInto(&msg))
	assert.Equal(t, "aabbccdd", msg.TaskIDHash)
	assert.Equal(t, "1", msg.ChainID)
}

func TestDecodeEnvelopeRejectsNonObject(t *testing.T) {
	for _, raw := range []string{`[]`, `"hello"`, `42`, `not json`} {
		_, err := DecodeEnvelope([]byte(raw))
		assert.Error(t, err, "input %s", raw)
	}
}

func TestDecodeEnvelopeRejectsBadNodeID(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`{"nodeId": "mallory"}`))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"nodeId": 5}`))
	assert.Error(t, err)
}

func TestDecodeEnvelopeWithoutNodeID(t *testing.T) {
	// An absent nodeId is an envelope-level pass; rejecting anonymous
	// messages is the rate limiter's job so the global budget still counts
	// them.
	env, err := DecodeEnvelope([]byte(`{"data": {"taskIdHash": "aabbccdd"}}`))
	require.NoError(t, err)
	assert.Empty(t, env.NodeID)
}

func TestDecodeIntoRejectsNonObjectData(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"data": [1, 2, 3]}`))
	require.NoError(t, err)

	var msg TaskReceived
	assert.Error(t, env.DecodeInto(&msg))
}

func TestDecodeIntoRequiresHash(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"nodeId": "node-00000000-0000-0000-0000-000000000001"}`))
	require.NoError(t, err)

	var task TaskReceived
	assert.Error(t, env.DecodeInto(&task))

	var invoice InvoiceCreated
	assert.Error(t, env.DecodeInto(&invoice))

	// Heartbeats carry no required payload fields.
	var hb Heartbeat
	assert.NoError(t, env.DecodeInto(&hb))
}

func TestTaskCompletedValidate(t *testing.T) {
	yes := true
	msg := TaskCompleted{
		TaskIDHash:          "aabbccdd",
		Success:             &yes,
		ExecutionTimeBucket: "100-500ms",
		GasUsedBucket:       "<100K",
	}
	assert.NoError(t, msg.Validate())

	msg.ExecutionTimeBucket = "drop table"
	assert.Error(t, msg.Validate())

	msg.ExecutionTimeBucket = ""
	msg.TaskIDHash = "XYZ"
	assert.Error(t, msg.Validate())
}

func TestHeartbeatValidate(t *testing.T) {
	msg := Heartbeat{
		Status:            "online",
		TotalTasksBucket:  "<1K",
		ActiveTasksBucket: "0-10",
		ContinentBucket:   "EU",
		LocationBucket:    "51.5,-0.1",
	}
	assert.NoError(t, msg.Validate())

	msg.LocationBucket = "91,0"
	assert.Error(t, msg.Validate())

	msg.LocationBucket = ""
	msg.ActiveTasksBucket = "lots"
	assert.Error(t, msg.Validate())
}

func TestStatsEnvelope(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 670000000, time.UTC)
	env := NewStatsEnvelope(at, &NetworkStats{
		TotalTasks:                1,
		ExecutionTimeDistribution: map[string]int64{"100-500ms": 1},
	})
	blob, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(blob, &decoded))
	assert.Equal(t, "1.0", decoded["version"])
	assert.Equal(t, "network_stats", decoded["type"])
	assert.Equal(t, "2026-01-02T03:04:05.670Z", decoded["timestamp"])

	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["totalTasks"])
	assert.Nil(t, data["truBurns"], "dormant burn monitor must serialize as null")
}
