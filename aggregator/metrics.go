package aggregator

import (
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	messagesMeter  = metrics.NewRegisteredMeter("federation/messages/received", nil)
	acceptedMeter  = metrics.NewRegisteredMeter("federation/messages/accepted", nil)
	invalidMeter   = metrics.NewRegisteredMeter("federation/messages/invalid", nil)
	limitedMeter   = metrics.NewRegisteredMeter("federation/messages/limited", nil)
	storeFailMeter = metrics.NewRegisteredMeter("federation/messages/storefail", nil)

	publishMeter     = metrics.NewRegisteredMeter("federation/rollup/published", nil)
	publishFailMeter = metrics.NewRegisteredMeter("federation/rollup/failed", nil)
	rollupTimer      = metrics.NewRegisteredTimer("federation/rollup/duration", nil)

	burnMeter   = metrics.NewRegisteredMeter("federation/burns/observed", nil)
	prunedMeter = metrics.NewRegisteredMeter("federation/cleanup/pruned", nil)

	activeNodesGauge   = metrics.NewRegisteredGauge("federation/stats/activenodes", nil)
	totalTasksGauge    = metrics.NewRegisteredGauge("federation/stats/totaltasks", nil)
	totalInvoicesGauge = metrics.NewRegisteredGauge("federation/stats/totalinvoices", nil)
)
