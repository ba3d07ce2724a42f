package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/metrics/exp"
	"github.com/ethereum/go-ethereum/metrics/influxdb"
	"github.com/urfave/cli/v2"

	"github.com/truebit/federation/internal/flags"
)

var (
	metricsEnabledFlag = &cli.BoolFlag{
		Name:     "metrics",
		Usage:    "Enable metrics collection and reporting",
		Category: flags.MetricsCategory,
	}
	metricsHTTPFlag = &cli.StringFlag{
		Name:     "metrics.addr",
		Usage:    "Enable stand-alone metrics HTTP server listening interface",
		Category: flags.MetricsCategory,
	}
	metricsPortFlag = &cli.IntFlag{
		Name:     "metrics.port",
		Usage:    "Metrics HTTP server listening port",
		Value:    6060,
		Category: flags.MetricsCategory,
	}
	metricsEnableInfluxDBFlag = &cli.BoolFlag{
		Name:     "metrics.influxdb",
		Usage:    "Enable metrics export/push to an external InfluxDB database",
		Category: flags.MetricsCategory,
	}
	metricsInfluxDBEndpointFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.endpoint",
		Usage:    "InfluxDB API endpoint to report metrics to",
		Value:    "http://localhost:8086",
		Category: flags.MetricsCategory,
	}
	metricsInfluxDBDatabaseFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.database",
		Usage:    "InfluxDB database name to push reported metrics to",
		Value:    "fedagg",
		Category: flags.MetricsCategory,
	}
	metricsInfluxDBUsernameFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.username",
		Usage:    "Username to authorize access to the database",
		Value:    "test",
		Category: flags.MetricsCategory,
	}
	metricsInfluxDBPasswordFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.password",
		Usage:    "Password to authorize access to the database",
		Value:    "test",
		Category: flags.MetricsCategory,
	}
	// Tags are part of every measurement sent to InfluxDB. Queries on tags
	// are faster in InfluxDB, fields only support the pipe comparator.
	metricsInfluxDBTagsFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.tags",
		Usage:    "Comma-separated InfluxDB tags (key/values) attached to all measurements",
		Value:    "host=localhost",
		Category: flags.MetricsCategory,
	}
	metricsEnableInfluxDBV2Flag = &cli.BoolFlag{
		Name:     "metrics.influxdbv2",
		Usage:    "Enable metrics export/push to an external InfluxDB v2 database",
		Category: flags.MetricsCategory,
	}
	metricsInfluxDBTokenFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.token",
		Usage:    "Token to authorize access to the database (v2 only)",
		Value:    "test",
		Category: flags.MetricsCategory,
	}
	metricsInfluxDBBucketFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.bucket",
		Usage:    "InfluxDB bucket name to push reported metrics to (v2 only)",
		Value:    "fedagg",
		Category: flags.MetricsCategory,
	}
	metricsInfluxDBOrganizationFlag = &cli.StringFlag{
		Name:     "metrics.influxdb.organization",
		Usage:    "InfluxDB organization name (v2 only)",
		Value:    "truebit",
		Category: flags.MetricsCategory,
	}
)

var metricsFlags = []cli.Flag{
	metricsEnabledFlag,
	metricsHTTPFlag,
	metricsPortFlag,
	metricsEnableInfluxDBFlag,
	metricsInfluxDBEndpointFlag,
	metricsInfluxDBDatabaseFlag,
	metricsInfluxDBUsernameFlag,
	metricsInfluxDBPasswordFlag,
	metricsInfluxDBTagsFlag,
	metricsEnableInfluxDBV2Flag,
	metricsInfluxDBTokenFlag,
	metricsInfluxDBBucketFlag,
	metricsInfluxDBOrganizationFlag,
}

// setupMetrics starts the metrics subsystem plus the configured exporters.
// It is a no-op unless --metrics is given.
func setupMetrics(ctx *cli.Context) {
	if !ctx.Bool(metricsEnabledFlag.Name) {
		return
	}
	log.Info("Enabling metrics collection")
	metrics.Enabled = true

	var (
		endpoint = ctx.String(metricsInfluxDBEndpointFlag.Name)
		database = ctx.String(metricsInfluxDBDatabaseFlag.Name)
		username = ctx.String(metricsInfluxDBUsernameFlag.Name)
		password = ctx.String(metricsInfluxDBPasswordFlag.Name)
	)
	if ctx.Bool(metricsEnableInfluxDBFlag.Name) {
		tagsMap := splitTagsFlag(ctx.String(metricsInfluxDBTagsFlag.Name))
		log.Info("Enabling metrics export to InfluxDB")
		go influxdb.InfluxDBWithTags(metrics.DefaultRegistry, 10*time.Second, endpoint, database, username, password, "fedagg.", tagsMap)
	} else if ctx.Bool(metricsEnableInfluxDBV2Flag.Name) {
		tagsMap := splitTagsFlag(ctx.String(metricsInfluxDBTagsFlag.Name))
		token := ctx.String(metricsInfluxDBTokenFlag.Name)
		bucket := ctx.String(metricsInfluxDBBucketFlag.Name)
		organization := ctx.String(metricsInfluxDBOrganizationFlag.Name)
		log.Info("Enabling metrics export to InfluxDB (v2)")
		go influxdb.InfluxDBV2WithTags(metrics.DefaultRegistry, 10*time.Second, endpoint, token, bucket, organization, "fedagg.", tagsMap)
	}
	if ctx.IsSet(metricsHTTPFlag.Name) {
		address := net.JoinHostPort(ctx.String(metricsHTTPFlag.Name), fmt.Sprintf("%d", ctx.Int(metricsPortFlag.Name)))
		log.Info("Enabling stand-alone metrics HTTP endpoint", "address", address)
		exp.Setup(address)
	}
	go metrics.CollectProcessMetrics(3 * time.Second)
}

func splitTagsFlag(tagsFlag string) map[string]string {
	tags := strings.Split(tagsFlag, ",")
	tagsMap := map[string]string{}
	for _, t := range tags {
		if t != "" {
			kv := strings.Split(t, "=")
			if len(kv) == 2 {
				tagsMap[kv[0]] = kv[1]
			}
		}
	}
	return tagsMap
}
