// Package wire defines the federation message vocabulary: the pub/sub
// subjects, the JSON envelope and payload shapes exchanged between node
// monitors and the aggregator, and the validation rules every inbound
// message must satisfy before it may touch aggregator state.
package wire

// Subjects carrying anonymized reporter summaries into the aggregator.
const (
	SubjectTasksReceived   = "truebit.tasks.received"
	SubjectTasksCompleted  = "truebit.tasks.completed"
	SubjectInvoicesCreated = "truebit.invoices.created"
	SubjectHeartbeat       = "truebit.heartbeat"
)

// SubjectStatsAggregated carries the rolled-up network snapshot back onto
// the fabric.
const SubjectStatsAggregated = "truebit.stats.aggregated"

// SubscribeSubjects lists every subject the aggregator consumes.
var SubscribeSubjects = []string{
	SubjectTasksReceived,
	SubjectTasksCompleted,
	SubjectInvoicesCreated,
	SubjectHeartbeat,
}
