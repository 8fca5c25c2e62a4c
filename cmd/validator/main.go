// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// validator runs a Sorcha validator node for one or more registers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/StuartF303/Sorcha-sub006/api"
	"github.com/StuartF303/Sorcha-sub006/blueprint"
	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/cmd/validator/httpserver"
	"github.com/StuartF303/Sorcha-sub006/comm"
	"github.com/StuartF303/Sorcha-sub006/genesis"
	"github.com/StuartF303/Sorcha-sub006/health"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/log"
	"github.com/StuartF303/Sorcha-sub006/metrics"
	"github.com/StuartF303/Sorcha-sub006/signing"
	"github.com/StuartF303/Sorcha-sub006/validator"
)

var (
	version       string
	gitCommit     string
	gitTag        string
	copyrightYear string

	logger = log.WithContext("pkg", "main")
)

const (
	nodeKeyRef      = "node"
	blueprintCache  = 256
	clockCheckEvery = 10 * time.Minute
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "Validator",
		Usage:     "Sorcha register validator node",
		Copyright: fmt.Sprintf("2025-%s The Sorcha developers", copyrightYear),
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			validatorIDFlag,
			endpointFlag,
			registersFlag,
			directoryURLFlag,
			blueprintURLFlag,
			apiAddrFlag,
			apiCorsFlag,
			apiTimeoutFlag,
			apiSlowQueriesThresholdFlag,
			enableAPILogsFlag,
			verbosityFlag,
			jsonLogsFlag,
			poolLimitFlag,
			clockSkewFlag,
			manualRoundsFlag,
			pprofFlag,
			enableMetricsFlag,
			metricsAddrFlag,
			enableAdminFlag,
			adminAddrFlag,
			disableNTPFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	exitSignal := handleExitSignal()
	defer func() { logger.Info("exited") }()

	logLevel := initLogger(ctx)

	cfg, err := loadFileConfig(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	registers := cfg.registers(ctx.String(registersFlag.Name))
	if len(registers) == 0 {
		return errors.New("no register to validate, use -registers or the config file")
	}
	static, err := cfg.staticListing()
	if err != nil {
		return err
	}

	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}
	key, err := loadOrGenerateKeyFile(filepath.Join(dataDir, "node.key"))
	if err != nil {
		return errors.Wrap(err, "load node key")
	}
	keys := signing.NewKeyring()
	keys.AddSecp256k1(nodeKeyRef, key)
	nodeID := validatorID(ctx, key)

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, closeFunc, err := httpserver.StartMetricsServer(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			return errors.Wrap(err, "start metrics server")
		}
		defer func() { logger.Info("stopping metrics server..."); closeFunc() }()
		logger.Info("metrics server started", "url", url)
	}

	ledgerDB, err := openLedgerDB(dataDir)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing ledger database..."); ledgerDB.Close() }()

	roundDB, err := openRoundDB(dataDir)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing round database..."); roundDB.Close() }()

	repo := chain.NewRepository(ledgerDB)
	defer repo.Close()

	retry := ledger.DefaultRetryPolicy()
	blueprints, err := openBlueprints(ctx, cfg, retry)
	if err != nil {
		return err
	}

	network := comm.NewHTTPNetwork(ctx.String(directoryURLFlag.Name), &http.Client{Timeout: retry.Timeout})
	for reg, list := range static {
		network.SetStatic(reg, list)
	}

	endpoint := ctx.String(endpointFlag.Name)
	if endpoint == "" {
		endpoint = "http://" + ctx.String(apiAddrFlag.Name)
	}
	orch := validator.New(validator.Options{
		ValidatorID: nodeID,
		KeyRef:      nodeKeyRef,
		Endpoint:    strings.TrimRight(endpoint, "/"),
		Keys:        keys,
		Blueprints:  blueprints,
		Ledger:      repo,
		Network:     network,
		Store:       ledgerDB,
		Rounds:      roundDB,
		Retry:       retry,
		PoolLimit:   ctx.Int(poolLimitFlag.Name),
		ClockSkew:   ctx.Duration(clockSkewFlag.Name),
		AutoRound:   !ctx.Bool(manualRoundsFlag.Name),
	})

	nodeHealth := health.New(orch.Registers)
	go trackDockets(exitSignal, repo, nodeHealth)

	if ctx.Bool(enableAdminFlag.Name) {
		url, closeFunc, err := api.StartAdminServer(ctx.String(adminAddrFlag.Name), logLevel, nodeHealth)
		if err != nil {
			return errors.Wrap(err, "start admin server")
		}
		defer func() { logger.Info("stopping admin server..."); closeFunc() }()
		logger.Info("admin server started", "url", url)
	}

	apiLogs := &atomic.Bool{}
	apiLogs.Store(ctx.Bool(enableAPILogsFlag.Name))
	apiHandler, apiCloser := api.New(orch, repo, api.Options{
		AllowedOrigins:       ctx.String(apiCorsFlag.Name),
		PprofOn:              ctx.Bool(pprofFlag.Name),
		EnableMetrics:        ctx.Bool(enableMetricsFlag.Name),
		EnableReqLogger:      apiLogs,
		SlowQueriesThreshold: time.Duration(ctx.Uint64(apiSlowQueriesThresholdFlag.Name)) * time.Millisecond,
	})
	defer func() { logger.Info("closing subscriptions..."); apiCloser() }()

	timeout := time.Duration(ctx.Uint64(apiTimeoutFlag.Name)) * time.Millisecond
	apiURL, apiClose, err := api.StartServer(ctx.String(apiAddrFlag.Name), apiHandler, timeout)
	if err != nil {
		return err
	}
	defer func() { logger.Info("stopping API server..."); apiClose() }()

	printStartupMessage(nodeID, endpoint, dataDir, apiURL, registers)

	started := 0
	for _, reg := range registers {
		if _, err := orch.Start(exitSignal, reg); err != nil {
			logger.Error("failed to start register", "register", reg, "err", err)
			continue
		}
		started++
	}
	nodeHealth.Started(started)

	if !ctx.Bool(disableNTPFlag.Name) {
		go clockCheckLoop(exitSignal, ctx.Duration(clockSkewFlag.Name))
	}

	<-exitSignal.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	orch.StopAll(stopCtx, true)
	return nil
}

func openBlueprints(ctx *cli.Context, cfg *fileConfig, retry ledger.RetryPolicy) (blueprint.Service, error) {
	if url := ctx.String(blueprintURLFlag.Name); url != "" {
		cached, err := blueprint.NewCached(blueprint.NewClient(url, retry), blueprintCache)
		if err != nil {
			return nil, err
		}
		return cached, nil
	}
	registry, err := cfg.loadRegistry(genesis.ControlBlueprint())
	if err != nil {
		return nil, err
	}
	return registry, nil
}

func trackDockets(ctx context.Context, repo *chain.Repository, h *health.Health) {
	ch := make(chan *chain.NewDocketEvent, 16)
	sub := repo.SubscribeNewDocket(ch)
	defer sub.Unsubscribe()

	for {
		select {
		case ev := <-ch:
			h.NewDocket(ev.Docket.Header.RegisterID, ev.Docket.Number(), ev.Docket.Digest())
		case <-sub.Err():
			return
		case <-ctx.Done():
			return
		}
	}
}

func clockCheckLoop(ctx context.Context, skew time.Duration) {
	checkClockOffset(skew)
	ticker := time.NewTicker(clockCheckEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			checkClockOffset(skew)
		case <-ctx.Done():
			return
		}
	}
}

func printStartupMessage(validatorID, endpoint, dataDir, apiURL string, registers []string) {
	fmt.Printf(`Starting %v
    Validator   [ %v ]
    Endpoint    [ %v ]
    Registers   [ %v ]
    Data dir    [ %v ]
    API portal  [ %v ]
`,
		fullVersion(),
		validatorID,
		endpoint,
		strings.Join(registers, ", "),
		dataDir,
		apiURL)
}
