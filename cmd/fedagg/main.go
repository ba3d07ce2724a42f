// fedagg is the TrueBit federation aggregator. It subscribes to the node
// report fabric, folds the reports into privacy-preserving aggregates and
// publishes network snapshots back onto the fabric.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/truebit/federation/aggregator"
	"github.com/truebit/federation/internal/debug"
	"github.com/truebit/federation/internal/flags"
	"github.com/truebit/federation/internal/version"
	"github.com/truebit/federation/storage"
	"github.com/truebit/federation/truburn"
)

const envPrefix = "FEDAGG"

var (
	brokerURLFlag = &cli.StringFlag{
		Name:     "nats.url",
		Usage:    "NATS endpoint of the federation fabric",
		Value:    aggregator.DefaultConfig.BrokerURL,
		EnvVars:  []string{"NATS_URL"},
		Category: flags.BrokerCategory,
	}
	brokerUserFlag = &cli.StringFlag{
		Name:     "nats.user",
		Usage:    "Username for the fabric connection",
		Value:    aggregator.DefaultConfig.BrokerUser,
		EnvVars:  []string{"NATS_USER"},
		Category: flags.BrokerCategory,
	}
	brokerPasswordFlag = &cli.StringFlag{
		Name:     "nats.password",
		Usage:    "Password for the fabric connection",
		EnvVars:  []string{"NATS_AGGREGATOR_PASSWORD"},
		Category: flags.BrokerCategory,
	}
	nodeBudgetFlag = &cli.IntFlag{
		Name:     "ratelimit.pernode",
		Usage:    "Messages accepted per reporter per window",
		Value:    aggregator.DefaultConfig.NodeBudget,
		EnvVars:  []string{"RATE_LIMIT_PER_NODE"},
		Category: flags.BrokerCategory,
	}
	globalBudgetFlag = &cli.IntFlag{
		Name:     "ratelimit.global",
		Usage:    "Messages accepted fabric-wide per window",
		Value:    aggregator.DefaultConfig.GlobalBudget,
		EnvVars:  []string{"GLOBAL_RATE_LIMIT"},
		Category: flags.BrokerCategory,
	}
	limitWindowFlag = &cli.Int64Flag{
		Name:     "ratelimit.window",
		Usage:    "Rate limit window in milliseconds",
		Value:    aggregator.DefaultConfig.Window.Milliseconds(),
		EnvVars:  []string{"RATE_LIMIT_WINDOW"},
		Category: flags.BrokerCategory,
	}

	dbPathFlag = &flags.DirectoryFlag{
		Name:     "db.path",
		Usage:    "SQLite database file holding the aggregate state",
		Value:    flags.DirectoryString(aggregator.DefaultConfig.DBPath),
		EnvVars:  []string{"DB_PATH"},
		Category: flags.FederationCategory,
	}
	publishIntervalFlag = &cli.Int64Flag{
		Name:     "publish.interval",
		Usage:    "Snapshot publish cadence in milliseconds",
		Value:    aggregator.DefaultConfig.PublishInterval.Milliseconds(),
		EnvVars:  []string{"PUBLISH_INTERVAL"},
		Category: flags.FederationCategory,
	}
	cleanupIntervalFlag = &cli.Int64Flag{
		Name:     "cleanup.interval",
		Usage:    "Retention sweep cadence in milliseconds",
		Value:    aggregator.DefaultConfig.CleanupInterval.Milliseconds(),
		EnvVars:  []string{"CLEANUP_INTERVAL"},
		Category: flags.FederationCategory,
	}
	retentionDaysFlag = &cli.IntFlag{
		Name:     "retention.days",
		Usage:    "Days of snapshot history to keep",
		Value:    aggregator.DefaultConfig.RetentionDays,
		EnvVars:  []string{"RETENTION_DAYS"},
		Category: flags.FederationCategory,
	}

	burnFlag = &cli.BoolFlag{
		Name:     "burn",
		Usage:    "Track TRU burns (disable to publish snapshots without burn totals)",
		Value:    aggregator.DefaultConfig.BurnEnabled,
		Category: flags.BurnCategory,
	}
	burnIndexerFlag = &cli.StringFlag{
		Name:     "burn.indexer",
		Usage:    "Blockscout API base URL used for token transfer lookups",
		Value:    aggregator.DefaultConfig.BurnIndexerURL,
		EnvVars:  []string{"BURN_INDEXER_URL"},
		Category: flags.BurnCategory,
	}
	burnTokenFlag = &cli.StringFlag{
		Name:     "burn.token",
		Usage:    "TRU token contract address",
		Value:    aggregator.DefaultConfig.BurnTokenContract.Hex(),
		EnvVars:  []string{"BURN_TOKEN_CONTRACT"},
		Category: flags.BurnCategory,
	}
	burnSyncIntervalFlag = &cli.Int64Flag{
		Name:     "burn.interval",
		Usage:    "Burn ledger sync cadence in milliseconds",
		Value:    aggregator.DefaultConfig.BurnSyncInterval.Milliseconds(),
		EnvVars:  []string{"BURN_SYNC_INTERVAL"},
		Category: flags.BurnCategory,
	}
)

var (
	federationFlags = []cli.Flag{
		dbPathFlag,
		publishIntervalFlag,
		cleanupIntervalFlag,
		retentionDaysFlag,
	}
	brokerFlags = []cli.Flag{
		brokerURLFlag,
		brokerUserFlag,
		brokerPasswordFlag,
		nodeBudgetFlag,
		globalBudgetFlag,
		limitWindowFlag,
	}
	burnFlags = []cli.Flag{
		burnFlag,
		burnIndexerFlag,
		burnTokenFlag,
		burnSyncIntervalFlag,
	}
)

var app = flags.NewApp("the TrueBit federation aggregator command line interface")

func init() {
	app.Action = fedagg
	app.HideVersion = true // the version command reports more
	app.Commands = []*cli.Command{
		dbCommand,
		versionCommand,
	}
	app.Flags = flags.Merge(federationFlags, brokerFlags, burnFlags, debug.Flags, metricsFlags)
	flags.AutoEnvVars(app.Flags, envPrefix)

	app.Before = func(ctx *cli.Context) error {
		flags.MigrateGlobalFlags(ctx)
		if err := debug.Setup(ctx); err != nil {
			return err
		}
		flags.CheckEnvVars(ctx, app.Flags, envPrefix)
		setupMetrics(ctx)
		return nil
	}
	app.After = func(ctx *cli.Context) error {
		debug.Exit()
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// makeConfig assembles the aggregator configuration from the CLI context.
func makeConfig(ctx *cli.Context) *aggregator.Config {
	cfg := aggregator.DefaultConfig
	cfg.BrokerURL = ctx.String(brokerURLFlag.Name)
	cfg.BrokerUser = ctx.String(brokerUserFlag.Name)
	cfg.BrokerPassword = ctx.String(brokerPasswordFlag.Name)
	cfg.DBPath = ctx.String(dbPathFlag.Name)
	cfg.PublishInterval = time.Duration(ctx.Int64(publishIntervalFlag.Name)) * time.Millisecond
	cfg.CleanupInterval = time.Duration(ctx.Int64(cleanupIntervalFlag.Name)) * time.Millisecond
	cfg.RetentionDays = ctx.Int(retentionDaysFlag.Name)
	cfg.NodeBudget = ctx.Int(nodeBudgetFlag.Name)
	cfg.GlobalBudget = ctx.Int(globalBudgetFlag.Name)
	cfg.Window = time.Duration(ctx.Int64(limitWindowFlag.Name)) * time.Millisecond
	cfg.BurnEnabled = ctx.Bool(burnFlag.Name)
	cfg.BurnIndexerURL = ctx.String(burnIndexerFlag.Name)
	cfg.BurnTokenContract = common.HexToAddress(ctx.String(burnTokenFlag.Name))
	cfg.BurnSyncInterval = time.Duration(ctx.Int64(burnSyncIntervalFlag.Name)) * time.Millisecond
	return cfg.Sanitize(log.Root())
}

// fedagg is the main entry point into the aggregator. It opens the store,
// connects to the fabric and blocks until the process is interrupted.
func fedagg(ctx *cli.Context) error {
	if args := ctx.Args().Slice(); len(args) > 0 {
		return fmt.Errorf("invalid command: %q", args[0])
	}
	cfg := makeConfig(ctx)
	log.Info("Starting federation aggregator", "client", version.ClientName(clientIdentifier))

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	defer store.Close()

	conn, err := aggregator.Connect(cfg, log.Root())
	if err != nil {
		return fmt.Errorf("connect broker %s: %w", cfg.BrokerURL, err)
	}

	var burns *truburn.Monitor
	if cfg.BurnEnabled {
		client := truburn.NewClient(cfg.BurnIndexerURL, cfg.BurnTokenContract)
		burns, err = truburn.New(store, client, cfg.BurnSyncInterval, nil, log.Root())
		if err != nil {
			// The aggregator still runs, snapshots carry a null burn
			// block until a restart brings the monitor back.
			log.Error("TRU burn monitor disabled", "err", err)
			burns = nil
		}
	}

	svc := aggregator.New(cfg, store, conn, burns, nil, log.Root())
	if err := svc.Start(); err != nil {
		conn.Close()
		return err
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	<-interrupt
	log.Warn("Shutting down aggregator (interrupt again to force quit)")
	go func() {
		<-interrupt
		os.Exit(1)
	}()
	return svc.Stop()
}
