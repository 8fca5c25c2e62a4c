// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis loads a register's configuration from the control record
// of its genesis docket.
package genesis

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/StuartF303/Sorcha-sub006/blueprint"
	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/log"
)

var logger = log.WithContext("pkg", "genesis")

// Loader reads and caches the config of one register.
type Loader struct {
	registerID string
	ledger     chain.Ledger
	retry      ledger.RetryPolicy

	mu     sync.RWMutex
	config *Config
}

// NewLoader creates a loader for registerID.
func NewLoader(registerID string, ldg chain.Ledger, retry ledger.RetryPolicy) *Loader {
	return &Loader{registerID: registerID, ledger: ldg, retry: retry}
}

// Load returns the cached config, reading it on first use.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	l.mu.RLock()
	cfg := l.config
	l.mu.RUnlock()
	if cfg != nil {
		return cfg, nil
	}
	return l.Refresh(ctx)
}

// Cached returns the cached config, nil if nothing was loaded yet.
func (l *Loader) Cached() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// Refresh re-reads docket 0 and replaces the cached config. On error the
// cached config is left as it was.
func (l *Loader) Refresh(ctx context.Context) (*Config, error) {
	var genesis *docket.Docket
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		d, err := l.ledger.ReadDocket(ctx, l.registerID, 0)
		if err != nil {
			if chain.IsNotFound(err) {
				return nil
			}
			if !ledger.IsUnavailable(err) {
				err = ledger.Unavailable("ledger", err)
			}
			return err
		}
		genesis = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	cfg, err := FromDocket(genesis)
	if err != nil {
		if ce, ok := err.(*ConfigError); ok {
			ce.RegisterID = l.registerID
		}
		return nil, err
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	logger.Debug("genesis config loaded", "register", l.registerID, "fromDocket", genesis != nil,
		"quorum", cfg.Consensus.Algorithm, "election", cfg.LeaderElection.Mechanism)
	return cfg, nil
}

// FromDocket derives the config from a genesis docket. A nil docket, or one
// without a control record, yields DefaultConfig.
func FromDocket(d *docket.Docket) (*Config, error) {
	if d == nil {
		return DefaultConfig(), nil
	}
	for _, trx := range d.Transactions {
		if trx.BlueprintID() == ledger.ControlBlueprintID {
			return Parse(trx.Payload())
		}
	}
	return DefaultConfig(), nil
}

// Parse decodes a control record. Fields left out keep their default values;
// unknown fields are violations.
func Parse(record json.RawMessage) (*Config, error) {
	cfg := DefaultConfig()
	dec := json.NewDecoder(bytes.NewReader(record))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, &ConfigError{Violations: []Violation{{Field: "record", Message: err.Error()}}}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ControlBlueprint returns the blueprint control record transactions are
// submitted under.
func ControlBlueprint() *blueprint.Blueprint {
	return &blueprint.Blueprint{
		ID:      ledger.ControlBlueprintID,
		Title:   "Register control",
		Version: 1,
		Actions: []blueprint.Action{{
			ID:    ledger.ControlActionID,
			Title: "Configure register",
			Schema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"consensus": {"type": "object"},
					"membership": {"type": "object"},
					"leaderElection": {"type": "object"}
				},
				"additionalProperties": false
			}`),
		}},
	}
}
