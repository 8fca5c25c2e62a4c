// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package validator manages the per register validator instances: their
// lifecycle and the entry points the API and the peer network call into.
package validator

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/blueprint"
	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/comm"
	"github.com/StuartF303/Sorcha-sub006/consensus"
	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/genesis"
	"github.com/StuartF303/Sorcha-sub006/kv"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/log"
	"github.com/StuartF303/Sorcha-sub006/rounddb"
	"github.com/StuartF303/Sorcha-sub006/signing"
	"github.com/StuartF303/Sorcha-sub006/tx"
	"github.com/StuartF303/Sorcha-sub006/txpool"
	"github.com/StuartF303/Sorcha-sub006/validation"
)

var logger = log.WithContext("pkg", "validator")

// KeyStore signs with local keys and exposes their public halves.
type KeyStore interface {
	signing.Signer
	PublicKey(ref string) ([]byte, string, error)
}

// Options wires the collaborators shared by every register.
type Options struct {
	ValidatorID string
	KeyRef      string
	Endpoint    string // peer API base url of this validator
	Keys        KeyStore
	Blueprints  blueprint.Service
	Ledger      chain.Ledger
	Network     comm.Network
	Store       kv.Store         // mempool snapshots, optional
	Rounds      *rounddb.RoundDB // round audit log, optional
	Retry       ledger.RetryPolicy
	PoolLimit   int
	ClockSkew   time.Duration
	AutoRound   bool
	Now         func() time.Time
}

// Orchestrator maps register ids to their validator instances. Instances are
// independent; there is no lock across registers beyond the map itself.
type Orchestrator struct {
	opts Options

	mu        sync.RWMutex
	instances map[string]*Instance
	starting  map[string]*sync.Mutex
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		opts:      opts,
		instances: make(map[string]*Instance),
		starting:  make(map[string]*sync.Mutex),
	}
}

// mempoolStoreName prefixes mempool snapshots in the store.
const mempoolStoreName = "mempool."

func (o *Orchestrator) snapshots() kv.Store {
	return kv.Bucket(mempoolStoreName).NewStore(o.opts.Store)
}

func (o *Orchestrator) callTimeout() time.Duration {
	if o.opts.Retry.Timeout > 0 {
		return o.opts.Retry.Timeout
	}
	return ledger.DefaultCallTimeout
}

// lifecycle returns the mutex serializing start and stop of a register.
func (o *Orchestrator) lifecycle(registerID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	l, ok := o.starting[registerID]
	if !ok {
		l = new(sync.Mutex)
		o.starting[registerID] = l
	}
	return l
}

func (o *Orchestrator) instance(registerID string) (*Instance, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	inst, ok := o.instances[registerID]
	if !ok {
		return nil, errors.Wrap(ErrNotStarted, registerID)
	}
	return inst, nil
}

// Registers returns the ids of the started registers.
func (o *Orchestrator) Registers() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := make([]string, 0, len(o.instances))
	for id := range o.instances {
		ids = append(ids, id)
	}
	return ids
}

// Start loads the genesis config of a register, primes its directory,
// restores a persisted mempool and starts its background loops. Starting a
// started register is a no-op that returns false.
func (o *Orchestrator) Start(ctx context.Context, registerID string) (bool, error) {
	if registerID == "" {
		return false, errors.New("register id required")
	}
	l := o.lifecycle(registerID)
	l.Lock()
	defer l.Unlock()

	if _, err := o.instance(registerID); err == nil {
		return false, nil
	}

	loader := genesis.NewLoader(registerID, o.opts.Ledger, o.opts.Retry)
	cfg, err := loader.Load(ctx)
	if err != nil {
		return false, err
	}

	inst := &Instance{
		registerID: registerID,
		startedAt:  o.opts.Now(),
		genesis:    loader,
	}
	inst.pipeline = validation.New(o.opts.Keys, o.opts.Blueprints, validation.Options{
		RegisterID: registerID,
		ClockSkew:  o.opts.ClockSkew,
		Now:        o.opts.Now,
	})
	inst.pool = txpool.New(inst.pipeline, txpool.Options{
		RegisterID: registerID,
		Limit:      o.opts.PoolLimit,
		Now:        o.opts.Now,
		Committed:  o.opts.Ledger,
	})
	inst.directory = directory.New(registerID, o.opts.Network, cfg.DirectoryPolicy(), o.opts.Retry)

	pub, alg, err := o.opts.Keys.PublicKey(o.opts.KeyRef)
	if err != nil {
		inst.pool.Close()
		return false, errors.Wrap(err, "validator key")
	}
	inst.directory.Seed(directory.ValidatorInfo{
		ID:        o.opts.ValidatorID,
		Endpoint:  o.opts.Endpoint,
		PublicKey: pub,
		Algorithm: alg,
		Weight:    1,
		Active:    true,
	})
	if err := inst.directory.Refresh(ctx); err != nil {
		// rounds refresh the directory again
		logger.Warn("validator directory not primed", "register", registerID, "err", err)
	}

	inst.engine = consensus.New(consensus.Options{
		RegisterID:  registerID,
		ValidatorID: o.opts.ValidatorID,
		KeyRef:      o.opts.KeyRef,
		Signer:      o.opts.Keys,
		Directory:   inst.directory,
		Pool:        inst.pool,
		Ledger:      o.opts.Ledger,
		Network:     o.opts.Network,
		Validator:   inst.pipeline,
		Config:      inst.config,
		Retry:       o.opts.Retry,
		Now:         o.opts.Now,
	})

	if o.opts.Store != nil {
		n, err := inst.pool.Load(ctx, o.snapshots())
		if err != nil {
			logger.Warn("failed to restore mempool", "register", registerID, "err", err)
		} else if n > 0 {
			logger.Info("mempool restored", "register", registerID, "count", n)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	inst.cancel = cancel
	inst.goLoop(func() { o.heartbeatLoop(loopCtx, inst) })
	if o.opts.AutoRound {
		inst.goLoop(func() { o.roundLoop(loopCtx, inst) })
	}

	o.mu.Lock()
	o.instances[registerID] = inst
	o.mu.Unlock()

	logger.Info("validator started", "register", registerID, "validator", o.opts.ValidatorID,
		"quorum", cfg.Consensus.Algorithm, "election", cfg.LeaderElection.Mechanism)
	return true, nil
}

// Stop stops a register's instance, optionally persisting its mempool so a
// restart picks the transactions up again. Stopping a stopped register is a no-op
// that returns false.
func (o *Orchestrator) Stop(ctx context.Context, registerID string, persist bool) (bool, error) {
	l := o.lifecycle(registerID)
	l.Lock()
	defer l.Unlock()

	inst, err := o.instance(registerID)
	if err != nil {
		return false, nil
	}
	inst.stopLoops()

	if persist && o.opts.Store != nil {
		n, err := inst.pool.Persist(o.snapshots())
		if err != nil {
			return false, err
		}
		logger.Info("mempool persisted", "register", registerID, "count", n)
	}

	o.mu.Lock()
	delete(o.instances, registerID)
	o.mu.Unlock()
	inst.pool.Close()

	logger.Info("validator stopped", "register", registerID)
	return true, nil
}

// StopAll stops every register.
func (o *Orchestrator) StopAll(ctx context.Context, persist bool) {
	for _, id := range o.Registers() {
		if _, err := o.Stop(ctx, id, persist); err != nil {
			logger.Warn("failed to stop register", "register", id, "err", err)
		}
	}
}

// Status of a running register.
type Status struct {
	RegisterID   string          `json:"registerId"`
	ValidatorID  string          `json:"validatorId"`
	StartedAt    time.Time       `json:"startedAt"`
	Round        uint64          `json:"round"`
	State        consensus.State `json:"state"`
	Leader       string          `json:"leader,omitempty"`
	IsLeader     bool            `json:"isLeader"`
	Validators   directory.Count `json:"validators"`
	LatestDocket *uint64         `json:"latestDocket,omitempty"`
	Mempool      txpool.Stats    `json:"mempool"`
	Config       *genesis.Config `json:"config"`
}

// Status reports the state of a register. Collaborator failures leave the
// affected fields empty.
func (o *Orchestrator) Status(ctx context.Context, registerID string) (*Status, error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return nil, err
	}
	st := &Status{
		RegisterID:  registerID,
		ValidatorID: o.opts.ValidatorID,
		StartedAt:   inst.startedAt,
		Round:       inst.engine.Round(),
		State:       inst.engine.State(),
		Mempool:     inst.pool.Stats(),
		Config:      inst.config(),
	}
	if leader, err := inst.engine.Leader(ctx); err == nil {
		st.Leader = leader.ID
		st.IsLeader = leader.ID == o.opts.ValidatorID
	}
	if count, err := inst.directory.Count(ctx); err == nil {
		st.Validators = count
	}
	if latest, err := o.opts.Ledger.ReadLatestDocket(ctx, registerID); err == nil {
		n := latest.Number()
		st.LatestDocket = &n
	}
	return st, nil
}

// ProcessRound runs one consensus round for a register.
func (o *Orchestrator) ProcessRound(ctx context.Context, registerID string) (*consensus.Result, error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return nil, err
	}
	return o.processRound(ctx, inst)
}

// Submit validates a transaction and admits it into the register's mempool.
func (o *Orchestrator) Submit(ctx context.Context, registerID string, trx *tx.Transaction) (validation.Result, error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return validation.Result{}, err
	}
	return inst.pool.Submit(ctx, trx)
}

// MempoolStats returns the register's mempool statistics.
func (o *Orchestrator) MempoolStats(registerID string) (txpool.Stats, error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return txpool.Stats{}, err
	}
	return inst.pool.Stats(), nil
}

// Mempool returns the pooled transactions in admission order.
func (o *Orchestrator) Mempool(registerID string) (tx.Transactions, error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return nil, err
	}
	return inst.pool.Dump(), nil
}

// SubscribeTxEvent subscribes to admissions into a register's mempool.
func (o *Orchestrator) SubscribeTxEvent(registerID string, ch chan *txpool.TxEvent) (func(), error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return nil, err
	}
	sub := inst.pool.SubscribeTxEvent(ch)
	return sub.Unsubscribe, nil
}

// RefreshGenesis reloads the genesis config. On failure the previous config stays in use.
func (o *Orchestrator) RefreshGenesis(ctx context.Context, registerID string) (*genesis.Config, error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return nil, err
	}
	cfg, err := inst.genesis.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	inst.directory.SetPolicy(cfg.DirectoryPolicy())
	return cfg, nil
}

// RefreshValidators re-fetches the validator directory.
func (o *Orchestrator) RefreshValidators(ctx context.Context, registerID string) ([]directory.ValidatorInfo, error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return nil, err
	}
	if err := inst.directory.Refresh(ctx); err != nil {
		return nil, err
	}
	return inst.directory.List(ctx)
}

// Validators lists the register's validators and pending registrations.
func (o *Orchestrator) Validators(ctx context.Context, registerID string) (list, pending []directory.ValidatorInfo, err error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return nil, nil, err
	}
	list, err = inst.directory.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	return list, inst.directory.Pending(), nil
}

// RegisterValidator asks to add a validator under the register's membership policy.
func (o *Orchestrator) RegisterValidator(ctx context.Context, registerID string, r directory.Registration) (directory.RegisterResult, error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return directory.RegisterResult{}, err
	}
	return inst.directory.Register(ctx, r)
}

// ApproveValidator admits a pending registration.
func (o *Orchestrator) ApproveValidator(registerID, validatorID string) (directory.RegisterResult, error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return directory.RegisterResult{}, err
	}
	return inst.directory.Approve(validatorID), nil
}

// HandleProposal implements comm.Handler.
func (o *Orchestrator) HandleProposal(ctx context.Context, registerID string, d *docket.Docket) (docket.Vote, error) {
	inst, err := o.instance(registerID)
	if err != nil {
		return docket.Vote{}, err
	}
	return inst.engine.Voter().Vote(ctx, d)
}

// HandleConfirmed implements comm.Handler.
func (o *Orchestrator) HandleConfirmed(ctx context.Context, registerID string, d *docket.Docket) error {
	inst, err := o.instance(registerID)
	if err != nil {
		return err
	}
	return inst.engine.Voter().Accept(ctx, d)
}

// HandleHeartbeat implements comm.Handler.
func (o *Orchestrator) HandleHeartbeat(_ context.Context, hb comm.Heartbeat) error {
	inst, err := o.instance(hb.RegisterID)
	if err != nil {
		return err
	}
	inst.engine.Tracker().Touch(hb.ValidatorID)
	inst.engine.SyncRound(hb.Round)
	return nil
}

// Docket reads a confirmed docket. A nil number reads the latest.
func (o *Orchestrator) Docket(ctx context.Context, registerID string, number *uint64) (*docket.Docket, error) {
	if number == nil {
		return o.opts.Ledger.ReadLatestDocket(ctx, registerID)
	}
	return o.opts.Ledger.ReadDocket(ctx, registerID, *number)
}

// Rounds returns the latest recorded round outcomes of a register.
func (o *Orchestrator) Rounds(ctx context.Context, registerID string, limit int) ([]*rounddb.Record, error) {
	if o.opts.Rounds == nil {
		return nil, nil
	}
	return o.opts.Rounds.Query(ctx, registerID, limit)
}

var _ comm.Handler = (*Orchestrator)(nil)
