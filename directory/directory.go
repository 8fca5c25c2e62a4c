// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package directory keeps the per register view of known validators.
package directory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/log"
	"github.com/StuartF303/Sorcha-sub006/signing"
)

var logger = log.WithContext("pkg", "directory")

// Directory caches the validators of one register. The listing comes from the
// Source and is merged with validators registered through this process.
type Directory struct {
	registerID string
	source     Source
	retry      ledger.RetryPolicy

	mu      sync.RWMutex
	policy  Policy
	fetched []ValidatorInfo
	loaded  bool
	local   map[string]ValidatorInfo
	pending map[string]ValidatorInfo

	group singleflight.Group
}

// New creates a directory for registerID.
func New(registerID string, source Source, policy Policy, retry ledger.RetryPolicy) *Directory {
	return &Directory{
		registerID: registerID,
		source:     source,
		retry:      retry,
		policy:     policy,
		local:      make(map[string]ValidatorInfo),
		pending:    make(map[string]ValidatorInfo),
	}
}

// SetPolicy replaces the membership policy, e.g. after a genesis refresh.
func (d *Directory) SetPolicy(p Policy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.policy = p
}

// Policy returns the current membership policy.
func (d *Directory) Policy() Policy {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.policy
}

// Refresh re-fetches the listing. Concurrent calls share one query.
// On failure the cached listing is left as it was.
func (d *Directory) Refresh(ctx context.Context) error {
	_, err, _ := d.group.Do("refresh", func() (any, error) {
		var list []ValidatorInfo
		err := d.retry.Do(ctx, func(ctx context.Context) error {
			var err error
			list, err = d.source.QueryValidators(ctx, d.registerID)
			if err != nil && !ledger.IsUnavailable(err) {
				err = ledger.Unavailable("peer directory", err)
			}
			return err
		})
		if err != nil {
			logger.Warn("validator query failed", "register", d.registerID, "err", err)
			return nil, err
		}

		d.mu.Lock()
		d.fetched = slices.Clone(list)
		d.loaded = true
		d.mu.Unlock()
		logger.Debug("validators refreshed", "register", d.registerID, "count", len(list))
		return nil, nil
	})
	return err
}

func (d *Directory) ensureLoaded(ctx context.Context) error {
	d.mu.RLock()
	loaded := d.loaded
	d.mu.RUnlock()
	if loaded {
		return nil
	}
	return d.Refresh(ctx)
}

// merged returns the fetched listing with local registrations, ordered by id.
// Fetched entries win over local ones with the same id.
func (d *Directory) merged() []ValidatorInfo {
	byID := make(map[string]ValidatorInfo, len(d.fetched)+len(d.local))
	for id, v := range d.local {
		byID[id] = v
	}
	for _, v := range d.fetched {
		byID[v.ID] = v
	}
	list := make([]ValidatorInfo, 0, len(byID))
	for _, v := range byID {
		list = append(list, v)
	}
	slices.SortFunc(list, func(a, b ValidatorInfo) int { return strings.Compare(a.ID, b.ID) })
	return list
}

// List returns every known validator ordered by id. The listing is fetched on first use.
func (d *Directory) List(ctx context.Context) ([]ValidatorInfo, error) {
	if err := d.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.merged(), nil
}

// Active returns the active validators ordered by id.
func (d *Directory) Active(ctx context.Context) ([]ValidatorInfo, error) {
	list, err := d.List(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(list, func(v ValidatorInfo) bool { return !v.Active }), nil
}

// Get returns the validator with the given id.
func (d *Directory) Get(ctx context.Context, id string) (ValidatorInfo, bool, error) {
	list, err := d.List(ctx)
	if err != nil {
		return ValidatorInfo{}, false, err
	}
	for _, v := range list {
		if v.ID == id {
			return v, true, nil
		}
	}
	return ValidatorInfo{}, false, nil
}

// Count returns the active count and whether it meets the configured minimum.
func (d *Directory) Count(ctx context.Context) (Count, error) {
	active, err := d.Active(ctx)
	if err != nil {
		return Count{}, err
	}
	policy := d.Policy()
	return Count{Active: len(active), HasQuorum: len(active) >= policy.MinValidators}, nil
}

func checkRegistration(r *Registration) string {
	switch {
	case r.ValidatorID == "":
		return "validator id required"
	case r.Endpoint == "":
		return "endpoint required"
	case len(r.PublicKey) == 0:
		return "public key required"
	case !signing.Supports(r.Algorithm):
		return "unsupported algorithm " + r.Algorithm
	case r.Weight < 0 || r.Weight > 1:
		return "weight out of range"
	}
	return ""
}

func (r *Registration) info() ValidatorInfo {
	weight := r.Weight
	if weight == 0 {
		weight = 1
	}
	return ValidatorInfo{
		ID:        r.ValidatorID,
		Endpoint:  r.Endpoint,
		PublicKey: r.PublicKey,
		Algorithm: r.Algorithm,
		Weight:    weight,
		Active:    true,
	}
}

// Register asks to add a validator. In public mode a well formed request is
// accepted while below the maximum validator count. In consent mode it is
// recorded as pending until Approve.
func (d *Directory) Register(ctx context.Context, r Registration) (RegisterResult, error) {
	if reason := checkRegistration(&r); reason != "" {
		return RegisterResult{Outcome: OutcomeRejected, Reason: reason}, nil
	}
	if err := d.ensureLoaded(ctx); err != nil {
		return RegisterResult{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if res, ok := d.admissible(r.ValidatorID); !ok {
		return res, nil
	}
	if d.policy.RequireStake && r.info().Weight < d.policy.MinStake {
		return RegisterResult{Outcome: OutcomeRejected, Reason: "stake below minimum"}, nil
	}
	if _, ok := d.pending[r.ValidatorID]; ok {
		return RegisterResult{Outcome: OutcomeRejected, Reason: "registration already pending"}, nil
	}

	if d.policy.Mode == ModeConsent {
		d.pending[r.ValidatorID] = r.info()
		logger.Info("validator registration pending", "register", d.registerID, "validator", r.ValidatorID)
		return RegisterResult{Outcome: OutcomePending, Reason: "awaiting approval"}, nil
	}

	d.local[r.ValidatorID] = r.info()
	logger.Info("validator registered", "register", d.registerID, "validator", r.ValidatorID)
	return RegisterResult{Outcome: OutcomeAccepted}, nil
}

// admissible must be called with the lock held.
func (d *Directory) admissible(id string) (RegisterResult, bool) {
	list := d.merged()
	if slices.ContainsFunc(list, func(v ValidatorInfo) bool { return v.ID == id }) {
		return RegisterResult{Outcome: OutcomeRejected, Reason: "validator already registered"}, false
	}
	if d.policy.MaxValidators > 0 && len(list) >= d.policy.MaxValidators {
		return RegisterResult{Outcome: OutcomeRejected, Reason: "validator set is full"}, false
	}
	return RegisterResult{}, true
}

// Approve admits a pending registration.
func (d *Directory) Approve(id string) RegisterResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	info, ok := d.pending[id]
	if !ok {
		return RegisterResult{Outcome: OutcomeRejected, Reason: "no pending registration"}
	}
	if res, ok := d.admissible(id); !ok {
		delete(d.pending, id)
		return res
	}
	delete(d.pending, id)
	d.local[id] = info
	logger.Info("validator approved", "register", d.registerID, "validator", id)
	return RegisterResult{Outcome: OutcomeAccepted}
}

// Pending returns the registrations awaiting approval ordered by id.
func (d *Directory) Pending() []ValidatorInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()
	list := make([]ValidatorInfo, 0, len(d.pending))
	for _, v := range d.pending {
		list = append(list, v)
	}
	slices.SortFunc(list, func(a, b ValidatorInfo) int { return strings.Compare(a.ID, b.ID) })
	return list
}

// Seed adds a validator known to this process, such as the local node,
// without applying the membership policy.
func (d *Directory) Seed(info ValidatorInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.local[info.ID] = info
}
