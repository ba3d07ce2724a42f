package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/truebit/federation/storage"
	"github.com/truebit/federation/truburn"
)

var (
	dbCommand = &cli.Command{
		Name:  "db",
		Usage: "Low-level operations on the aggregate database",
		Description: `
Inspects the aggregate database of a stopped or running aggregator. All
subcommands open the database read-mostly and leave its contents untouched.
`,
		Subcommands: []*cli.Command{
			dbStatsCmd,
			dbBurnsCmd,
			dbChartCmd,
		},
	}
	dbStatsCmd = &cli.Command{
		Action: dbStats,
		Name:   "stats",
		Usage:  "Print the current network-wide aggregates",
		Flags:  []cli.Flag{dbPathFlag},
	}
	dbBurnsCmd = &cli.Command{
		Action: dbBurns,
		Name:   "burns",
		Usage:  "Print the TRU burn ledger leaderboard",
		Flags:  []cli.Flag{dbPathFlag, burnTopFlag},
	}
	dbChartCmd = &cli.Command{
		Action: dbChart,
		Name:   "chart",
		Usage:  "Print daily TRU burn totals",
		Flags:  []cli.Flag{dbPathFlag, chartDaysFlag},
	}

	burnTopFlag = &cli.IntFlag{
		Name:  "top",
		Usage: "Number of leaderboard entries to show",
		Value: 10,
	}
	chartDaysFlag = &cli.IntFlag{
		Name:  "days",
		Usage: "Number of trailing days to chart",
		Value: 30,
	}
)

func openStore(ctx *cli.Context) (*storage.Store, error) {
	path := ctx.String(dbPathFlag.Name)
	store, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	return store, nil
}

func dbStats(ctx *cli.Context) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.GatherNetworkStats(time.Now())
	if err != nil {
		return err
	}
	burns, err := store.BurnCount()
	if err != nil {
		return err
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Stat", "Value"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk([][]string{
		{"Active nodes", strconv.FormatInt(stats.ActiveNodes, 10)},
		{"Total nodes", strconv.FormatInt(stats.TotalNodes, 10)},
		{"Total tasks", strconv.FormatInt(stats.TotalTasks, 10)},
		{"Completed tasks", strconv.FormatInt(stats.CompletedTasks, 10)},
		{"Failed tasks", strconv.FormatInt(stats.FailedTasks, 10)},
		{"Cached tasks", strconv.FormatInt(stats.CachedTasks, 10)},
		{"Tasks last 24h", strconv.FormatInt(stats.TasksLast24h, 10)},
		{"Total invoices", strconv.FormatInt(stats.TotalInvoices, 10)},
		{"Invoices last 24h", strconv.FormatInt(stats.InvoicesLast24h, 10)},
		{"Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRate)},
		{"Cache hit rate", fmt.Sprintf("%.1f%%", stats.CacheHitRate)},
		{"Known burns", strconv.FormatInt(burns, 10)},
	})
	table.Render()
	return nil
}

func dbBurns(ctx *cli.Context) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	burns, err := store.Burns()
	if err != nil {
		return err
	}
	if len(burns) == 0 {
		fmt.Println("Burn ledger is empty")
		return nil
	}
	board := truburn.Leaderboard(burns, ctx.Int(burnTopFlag.Name))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Rank", "Address", "Burns", "Total TRU"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for i, entry := range board {
		table.Append([]string{
			strconv.Itoa(i + 1),
			entry.Address,
			strconv.Itoa(entry.Count),
			strconv.FormatFloat(entry.TotalFormatted, 'f', -1, 64),
		})
	}
	table.Render()

	summary := truburn.Summarize(burns, time.Now())
	fmt.Printf("Total burned: %s TRU across %d burns\n",
		strconv.FormatFloat(summary.TotalBurned, 'f', -1, 64), summary.BurnCount)
	if summary.LastBurnTxHash != "" {
		fmt.Printf("Last burn: %s at %s\n", summary.LastBurnTxHash,
			time.UnixMilli(summary.LastBurnTimestamp).UTC().Format(time.RFC3339))
	}
	return nil
}

func dbChart(ctx *cli.Context) error {
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	burns, err := store.Burns()
	if err != nil {
		return err
	}
	points := truburn.DailyChart(burns)
	if days := ctx.Int(chartDaysFlag.Name); days > 0 && len(points) > days {
		points = points[len(points)-days:]
	}
	if len(points) == 0 {
		fmt.Println("Burn ledger is empty")
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", "Burned TRU", "Cumulative TRU"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, p := range points {
		table.Append([]string{
			p.Date,
			strconv.FormatFloat(p.Burned, 'f', -1, 64),
			strconv.FormatFloat(p.Cumulative, 'f', -1, 64),
		})
	}
	table.Render()
	return nil
}
