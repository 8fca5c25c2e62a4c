// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/beevik/ntp"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/StuartF303/Sorcha-sub006/log"
	"github.com/StuartF303/Sorcha-sub006/lvldb"
	"github.com/StuartF303/Sorcha-sub006/rounddb"
)

const ntpServer = "pool.ntp.org"

func initLogger(ctx *cli.Context) *slog.LevelVar {
	logLevel := log.FromLegacyLevel(int(ctx.Uint64(verbosityFlag.Name)))
	lvl := &slog.LevelVar{}
	lvl.Set(logLevel)

	var handler slog.Handler
	if ctx.Bool(jsonLogsFlag.Name) {
		handler = log.JSONHandlerWithLevel(os.Stderr, lvl)
	} else {
		output := io.Writer(os.Stderr)
		useColor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) &&
			os.Getenv("TERM") != "dumb"
		handler = log.NewTerminalHandlerWithLevel(output, lvl, useColor)
	}
	log.SetDefault(log.NewLogger(handler))
	return lvl
}

func defaultDataDir() string {
	if home := homeDir(); home != "" {
		switch runtime.GOOS {
		case "darwin":
			return filepath.Join(home, "Library", "Application Support", "io.sorcha.validator")
		case "windows":
			return filepath.Join(home, "AppData", "Roaming", "io.sorcha.validator")
		default:
			return filepath.Join(home, ".io.sorcha.validator")
		}
	}
	return ""
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

func makeDataDir(ctx *cli.Context) (string, error) {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return "", fmt.Errorf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", errors.Wrapf(err, "create data dir [%v]", dataDir)
	}
	return dataDir, nil
}

// loadOrGenerateKeyFile loads the node key, creating it on first start.
func loadOrGenerateKeyFile(keyFile string) (key *ecdsa.PrivateKey, err error) {
	if !common.FileExist(keyFile) {
		// no such file, generate new key and write in
		key, err = crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		if err := crypto.SaveECDSA(keyFile, key); err != nil {
			return nil, err
		}
		return key, nil
	}
	return crypto.LoadECDSA(keyFile)
}

// validatorID returns the configured id, or one derived from the node key.
func validatorID(ctx *cli.Context, key *ecdsa.PrivateKey) string {
	if id := strings.TrimSpace(ctx.String(validatorIDFlag.Name)); id != "" {
		return id
	}
	return "validator-" + strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex()[2:])
}

func openLedgerDB(dataDir string) (*lvldb.LevelDB, error) {
	path := filepath.Join(dataDir, "ledger.db")
	db, err := lvldb.New(path, lvldb.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open ledger database [%v]", path)
	}
	return db, nil
}

func openRoundDB(dataDir string) (*rounddb.RoundDB, error) {
	path := filepath.Join(dataDir, "rounds.db")
	db, err := rounddb.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open round database [%v]", path)
	}
	return db, nil
}

// checkClockOffset warns when the local clock drifts by more than half the
// tolerated skew.
func checkClockOffset(skew time.Duration) {
	resp, err := ntp.Query(ntpServer)
	if err != nil {
		logger.Debug("failed to access NTP", "err", err)
		return
	}
	offset := resp.ClockOffset
	if offset < 0 {
		offset = -offset
	}
	if offset > skew/2 {
		logger.Warn("clock offset detected", "offset", common.PrettyDuration(resp.ClockOffset))
	}
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(exitSignalCh)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}
