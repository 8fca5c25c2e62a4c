// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/StuartF303/Sorcha-sub006/ledger"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML config file listing registers, blueprints and static validators",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for the ledger and round databases",
	}
	validatorIDFlag = cli.StringFlag{
		Name:  "validator-id",
		Usage: "id of this validator, derived from the node key when empty",
	}
	endpointFlag = cli.StringFlag{
		Name:  "endpoint",
		Usage: "URL other validators reach this node's API on, http://<api-addr> when empty",
	}
	registersFlag = cli.StringFlag{
		Name:  "registers",
		Usage: "comma separated list of registers to validate, added to those of the config file",
	}
	directoryURLFlag = cli.StringFlag{
		Name:  "directory-url",
		Usage: "peer directory service URL, the static validators of the config file are used when empty",
	}
	blueprintURLFlag = cli.StringFlag{
		Name:  "blueprint-url",
		Usage: "blueprint service URL, the blueprint files of the config file are used when empty",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8670",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Value: "",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	apiTimeoutFlag = cli.Uint64Flag{
		Name:  "api-timeout",
		Value: 10000,
		Usage: "API request timeout value in milliseconds",
	}
	apiSlowQueriesThresholdFlag = cli.Uint64Flag{
		Name:  "api-slow-queries-threshold",
		Value: 0,
		Usage: "all queries with duration longer than this threshold (ms) will be logged",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
	verbosityFlag = cli.Uint64Flag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
	poolLimitFlag = cli.IntFlag{
		Name:  "mempool-limit",
		Value: ledger.DefaultPoolLimit,
		Usage: "maximum number of pooled transactions per register",
	}
	clockSkewFlag = cli.DurationFlag{
		Name:  "clock-skew",
		Value: ledger.DefaultClockSkew,
		Usage: "tolerance for transaction timestamps in the future",
	}
	manualRoundsFlag = cli.BoolFlag{
		Name:  "manual-rounds",
		Usage: "only run consensus rounds on request of the API",
	}
	pprofFlag = cli.BoolFlag{
		Name:  "pprof",
		Usage: "turn on go-pprof",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	enableAdminFlag = cli.BoolFlag{
		Name:  "enable-admin",
		Usage: "enables admin server",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Value: "localhost:2113",
		Usage: "admin service listening address",
	}
	disableNTPFlag = cli.BoolFlag{
		Name:  "disable-ntp",
		Usage: "skip the clock offset check against pool.ntp.org",
	}
)
