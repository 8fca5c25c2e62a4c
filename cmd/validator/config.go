// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/StuartF303/Sorcha-sub006/blueprint"
	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/tx"
)

// fileConfig is the optional YAML config of a validator node.
type fileConfig struct {
	Registers  []string                     `yaml:"registers"`
	Blueprints []string                     `yaml:"blueprints"`
	Validators map[string][]staticValidator `yaml:"validators"`
}

type staticValidator struct {
	ID        string  `yaml:"id"`
	Endpoint  string  `yaml:"endpoint"`
	PublicKey string  `yaml:"publicKey"`
	Algorithm string  `yaml:"algorithm"`
	Weight    float64 `yaml:"weight"`
}

func (v *staticValidator) info() (directory.ValidatorInfo, error) {
	if v.ID == "" || v.Endpoint == "" {
		return directory.ValidatorInfo{}, errors.New("validator id and endpoint required")
	}
	pub, err := hexutil.Decode(v.PublicKey)
	if err != nil {
		return directory.ValidatorInfo{}, errors.Wrapf(err, "validator %s: publicKey", v.ID)
	}
	alg := v.Algorithm
	if alg == "" {
		alg = tx.AlgSecp256k1
	}
	weight := v.Weight
	if weight == 0 {
		weight = 1
	}
	return directory.ValidatorInfo{
		ID:        v.ID,
		Endpoint:  strings.TrimRight(v.Endpoint, "/"),
		PublicKey: pub,
		Algorithm: alg,
		Weight:    weight,
		Active:    true,
	}, nil
}

func loadFileConfig(path string) (*fileConfig, error) {
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %s", path)
	}

	// blueprint paths are relative to the config file
	dir := filepath.Dir(path)
	for i, p := range cfg.Blueprints {
		if !filepath.IsAbs(p) {
			cfg.Blueprints[i] = filepath.Join(dir, p)
		}
	}
	return cfg, nil
}

// registers merges the configured registers with extra, dropping blanks and duplicates.
func (c *fileConfig) registers(extra string) []string {
	ids := slices.Clone(c.Registers)
	for _, id := range strings.Split(extra, ",") {
		ids = append(ids, id)
	}
	out := ids[:0]
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// staticListing converts the configured validators per register.
func (c *fileConfig) staticListing() (map[string][]directory.ValidatorInfo, error) {
	listing := make(map[string][]directory.ValidatorInfo, len(c.Validators))
	for reg, vals := range c.Validators {
		for i := range vals {
			info, err := vals[i].info()
			if err != nil {
				return nil, errors.WithMessagef(err, "register %s", reg)
			}
			listing[reg] = append(listing[reg], info)
		}
	}
	return listing, nil
}

// loadRegistry builds a blueprint registry from the configured JSON files.
func (c *fileConfig) loadRegistry(extra ...*blueprint.Blueprint) (*blueprint.Registry, error) {
	reg := blueprint.NewRegistry()
	for _, bp := range extra {
		if err := reg.Put(bp); err != nil {
			return nil, err
		}
	}
	for _, path := range c.Blueprints {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read blueprint")
		}
		var bp blueprint.Blueprint
		if err := json.Unmarshal(data, &bp); err != nil {
			return nil, errors.Wrapf(err, "parse blueprint %s", path)
		}
		if err := reg.Put(&bp); err != nil {
			return nil, errors.WithMessagef(err, "blueprint %s", path)
		}
	}
	return reg, nil
}
