package flags

const (
	FederationCategory = "FEDERATION"
	BrokerCategory     = "BROKER"
	BurnCategory       = "TRU BURN TRACKING"
	LoggingCategory    = "LOGGING AND DEBUGGING"
	MetricsCategory    = "METRICS AND STATS"
	MiscCategory       = "MISC"
)
