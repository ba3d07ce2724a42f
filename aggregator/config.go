// Package aggregator wires the federation together: it subscribes to the
// broker subjects, folds validated reports into the store and periodically
// publishes network-wide snapshots.
package aggregator

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// Config are the tunables of a federation aggregator.
type Config struct {
	// Broker connection. An empty password is tolerated with a warning so
	// development setups work against open brokers.
	BrokerURL      string
	BrokerUser     string
	BrokerPassword string

	// DBPath is the SQLite database file. Parent directories are created.
	DBPath string

	// PublishInterval is the snapshot cadence, CleanupInterval the retention
	// sweep cadence. RetentionDays bounds the stats history archive only;
	// task and invoice rows have a fixed idle lifetime.
	PublishInterval time.Duration
	CleanupInterval time.Duration
	RetentionDays   int

	// Inbound rate limiting: per-reporter and global message budgets over a
	// shared window.
	NodeBudget   int
	GlobalBudget int
	Window       time.Duration

	// TRU burn tracking. BurnEnabled false leaves snapshots with a null
	// burn block.
	BurnEnabled       bool
	BurnIndexerURL    string
	BurnTokenContract common.Address
	BurnSyncInterval  time.Duration
}

// DefaultConfig holds the stock aggregator settings.
var DefaultConfig = Config{
	BrokerURL:         "wss://fabric.truebit.network:4222",
	BrokerUser:        "aggregator",
	DBPath:            "/data/aggregator.db",
	PublishInterval:   30 * time.Second,
	CleanupInterval:   24 * time.Hour,
	RetentionDays:     30,
	NodeBudget:        10,
	GlobalBudget:      1000,
	Window:            time.Second,
	BurnEnabled:       true,
	BurnIndexerURL:    "https://eth.blockscout.com/api/v2",
	BurnTokenContract: common.HexToAddress("0xf65B5C5104c4faFD4b709d9D60a185eAE063276c"),
	BurnSyncInterval:  5 * time.Minute,
}

// Sanitize replaces unusable values with their defaults and warns about
// settings that look like operator mistakes. It returns the receiver.
func (c *Config) Sanitize(logger log.Logger) *Config {
	if c.BrokerURL == "" {
		c.BrokerURL = DefaultConfig.BrokerURL
	}
	if c.BrokerUser == "" {
		c.BrokerUser = DefaultConfig.BrokerUser
	}
	if c.BrokerPassword == "" {
		logger.Warn("Broker password not set, connecting without credentials", "user", c.BrokerUser)
	}
	if c.DBPath == "" {
		c.DBPath = DefaultConfig.DBPath
	}
	if c.PublishInterval <= 0 {
		logger.Warn("Invalid publish interval, using default", "provided", c.PublishInterval, "default", DefaultConfig.PublishInterval)
		c.PublishInterval = DefaultConfig.PublishInterval
	}
	if c.CleanupInterval <= 0 {
		logger.Warn("Invalid cleanup interval, using default", "provided", c.CleanupInterval, "default", DefaultConfig.CleanupInterval)
		c.CleanupInterval = DefaultConfig.CleanupInterval
	}
	if c.RetentionDays <= 0 {
		logger.Warn("Invalid history retention, using default", "provided", c.RetentionDays, "default", DefaultConfig.RetentionDays)
		c.RetentionDays = DefaultConfig.RetentionDays
	}
	if c.NodeBudget <= 0 {
		c.NodeBudget = DefaultConfig.NodeBudget
	}
	if c.GlobalBudget <= 0 {
		c.GlobalBudget = DefaultConfig.GlobalBudget
	}
	if c.GlobalBudget < c.NodeBudget {
		logger.Warn("Global rate budget below per-node budget", "global", c.GlobalBudget, "node", c.NodeBudget)
	}
	if c.Window <= 0 {
		c.Window = DefaultConfig.Window
	}
	if c.BurnEnabled {
		if c.BurnIndexerURL == "" {
			c.BurnIndexerURL = DefaultConfig.BurnIndexerURL
		}
		if c.BurnTokenContract == (common.Address{}) {
			c.BurnTokenContract = DefaultConfig.BurnTokenContract
		}
		if c.BurnSyncInterval <= 0 {
			c.BurnSyncInterval = DefaultConfig.BurnSyncInterval
		}
	}
	return c
}
