// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package consensus drives the propose, vote and confirm protocol of a register.
package consensus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/comm"
	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/election"
	"github.com/StuartF303/Sorcha-sub006/genesis"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/log"
	"github.com/StuartF303/Sorcha-sub006/packer"
	"github.com/StuartF303/Sorcha-sub006/signing"
	"github.com/StuartF303/Sorcha-sub006/tx"
	"github.com/StuartF303/Sorcha-sub006/validation"
)

var logger = log.WithContext("pkg", "consensus")

// Pool is the part of the mempool the engine uses.
type Pool interface {
	TakeBatch(maxCount int) tx.Transactions
	Evict(ids ...string) int
}

// TxValidator re-validates transactions of a docket proposed by a peer.
type TxValidator interface {
	Validate(ctx context.Context, trx *tx.Transaction) (validation.Result, error)
}

// Options wires the collaborators of an engine.
type Options struct {
	RegisterID  string
	ValidatorID string // local validator
	KeyRef      string // local signing key
	Signer      signing.Signer
	Directory   *directory.Directory
	Pool        Pool
	Ledger      chain.Ledger
	Network     comm.Network
	Validator   TxValidator
	Config      func() *genesis.Config
	Retry       ledger.RetryPolicy
	Now         func() time.Time
}

// Engine runs consensus rounds for one register. At most one round runs at a time.
type Engine struct {
	opts    Options
	packer  *packer.Packer
	tracker *election.Tracker
	votes   *voteLock

	roundLock sync.Mutex
	state     atomic.Value // State
	round     atomic.Uint64
}

// New creates an engine.
func New(opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Config == nil {
		opts.Config = genesis.DefaultConfig
	}
	e := &Engine{
		opts:    opts,
		packer:  packer.New(opts.RegisterID, opts.ValidatorID, opts.KeyRef, opts.Signer, opts.Pool, opts.Ledger, opts.Retry),
		tracker: election.NewTracker(opts.Now),
		votes:   newVoteLock(),
	}
	e.state.Store(StateIdle)
	return e
}

// State returns the state of the current round.
func (e *Engine) State() State {
	return e.state.Load().(State)
}

// Round returns the current round number.
func (e *Engine) Round() uint64 {
	return e.round.Load()
}

// Tracker returns the leader liveness tracker.
func (e *Engine) Tracker() *election.Tracker {
	return e.tracker
}

// SyncRound moves the round counter forward to round if it is behind.
func (e *Engine) SyncRound(round uint64) {
	for {
		cur := e.round.Load()
		if round <= cur {
			return
		}
		if e.round.CompareAndSwap(cur, round) {
			e.tracker.StartRound(round)
			return
		}
	}
}

func (e *Engine) advance() uint64 {
	next := e.round.Add(1)
	e.tracker.StartRound(next)
	return next
}

// Leader returns the leader of the current round among the active validators.
func (e *Engine) Leader(ctx context.Context) (directory.ValidatorInfo, error) {
	elector, err := e.opts.Config().Elector()
	if err != nil {
		return directory.ValidatorInfo{}, err
	}
	actives, err := e.opts.Directory.Active(ctx)
	if err != nil {
		return directory.ValidatorInfo{}, err
	}
	return elector.Leader(e.Round(), actives)
}

// RunRound runs one round: if the local validator leads it, a docket is
// built, voted on and confirmed or discarded. A follower's call is a no-op
// unless the leader has been silent past the leader timeout, in which case
// the round is skipped. A round is discarded up front when the active set
// is below the minimum validator count or too small to gather the minimum
// signatures. Concurrent calls fail with ErrRoundInProgress.
//
// A non nil error means a collaborator was unavailable; nothing changed.
func (e *Engine) RunRound(ctx context.Context) (*Result, error) {
	if !e.roundLock.TryLock() {
		return nil, ErrRoundInProgress
	}
	defer e.roundLock.Unlock()
	defer e.state.Store(StateIdle)

	start := mclock.Now()
	res, err := e.runRound(ctx)
	if err != nil {
		metricRounds().AddWithLabel(1, map[string]string{"outcome": "unavailable"})
		logger.Warn("round failed", "register", e.opts.RegisterID, "round", e.Round(), "err", err)
		return nil, err
	}
	elapsed := time.Duration(mclock.Now() - start)
	metricRounds().AddWithLabel(1, map[string]string{"outcome": string(res.Status)})
	metricRoundDuration().Observe(elapsed.Milliseconds())

	switch res.Status {
	case StatusConfirmed:
		logger.Info("📦 docket confirmed", "register", e.opts.RegisterID, "round", res.Round, "number", res.Docket.Number(),
			"txs", len(res.Docket.Transactions), "votes", res.Votes, "elapsed", common.PrettyDuration(elapsed))
	case StatusDiscarded, StatusLeaderTimeout:
		logger.Info("round discarded", "register", e.opts.RegisterID, "round", res.Round, "status", res.Status,
			"reason", res.Reason, "elapsed", common.PrettyDuration(elapsed))
	default:
		logger.Debug("round done", "register", e.opts.RegisterID, "round", res.Round, "status", res.Status)
	}
	return res, nil
}

func (e *Engine) runRound(ctx context.Context) (*Result, error) {
	cfg := e.opts.Config()
	elector, err := cfg.Elector()
	if err != nil {
		return nil, err
	}

	// the electorate is fixed at round start
	if err := e.opts.Directory.Refresh(ctx); err != nil {
		return nil, err
	}
	actives, err := e.opts.Directory.Active(ctx)
	if err != nil {
		return nil, err
	}

	round := e.Round()
	switch n := len(actives); {
	case n < cfg.Membership.MinValidators:
		return &Result{Round: round, Status: StatusDiscarded,
			Reason: fmt.Sprintf("%d active validators, minimum %d", n, cfg.Membership.MinValidators)}, nil
	case !cfg.Consensus.Reachable(n):
		return &Result{Round: round, Status: StatusDiscarded,
			Reason: fmt.Sprintf("%d active validators cannot reach %d signatures", n, cfg.Consensus.Quorum(n))}, nil
	}

	e.tracker.StartRound(round)
	leader, err := elector.Leader(round, actives)
	if err != nil {
		return nil, errors.Wrap(err, "elect leader")
	}
	res := &Result{Round: round, Leader: leader.ID}

	if leader.ID != e.opts.ValidatorID {
		if e.tracker.Expired(leader.ID, cfg.LeaderElection.LeaderTimeout.Std()) {
			e.advance()
			res.Status = StatusLeaderTimeout
			res.Reason = "leader " + leader.ID + " silent past leader timeout"
			return res, nil
		}
		res.Status = StatusNotLeader
		return res, nil
	}

	e.state.Store(StateProposing)
	d, err := e.packer.Build(ctx, round, cfg.Consensus.MaxTxPerDocket)
	if err != nil {
		if packer.IsNoTransactions(err) {
			res.Status = StatusNoTransactions
			return res, nil
		}
		return nil, err
	}
	res.Docket = d

	// the leader's own vote counts like any other
	if held, ok := e.votes.acquire(d.Number(), round, d.Digest(), e.opts.Now(), cfg.Consensus.VoteTimeout.Std()); !ok {
		return e.discard(res, fmt.Sprintf("voted for docket %s at number %d in round %d", held.digest.AbbrevString(), d.Number(), held.round)), nil
	}

	e.state.Store(StateCollectingVotes)
	votes := e.collectVotes(ctx, d, actives, cfg)
	res.Votes = votes.count()
	res.Quorum = votes.threshold
	metricVotesCollected().Observe(int64(res.Votes))

	if !votes.reached() {
		return e.discard(res, "quorum not reached"), nil
	}

	d.Votes = votes.take(max(cfg.Consensus.MaxSignatures, votes.threshold))
	d.Status = docket.StatusConfirmed
	if err := e.write(ctx, d); err != nil {
		d.Status = docket.StatusProposed
		if chain.IsDuplicateTx(err) || chain.IsConflict(err) || isLinkError(err) {
			return e.discard(res, err.Error()), nil
		}
		return nil, err
	}
	e.state.Store(StateConfirmed)
	e.opts.Pool.Evict(d.TxIDs()...)
	e.votes.release(d.Number())
	e.advance()
	metricDocketConfirmed().AddWithLabel(1, map[string]string{"source": "proposed"})

	if peers := others(actives, e.opts.ValidatorID); len(peers) > 0 {
		if err := e.opts.Network.BroadcastConfirmedDocket(ctx, peers, d); err != nil {
			logger.Debug("broadcast confirmed docket", "register", e.opts.RegisterID, "err", err)
		}
	}
	res.Status = StatusConfirmed
	return res, nil
}

// discard ends the round without confirming its docket.
func (e *Engine) discard(res *Result, reason string) *Result {
	e.state.Store(StateDiscarded)
	res.Docket.Status = docket.StatusDiscarded
	e.votes.drop(res.Docket.Number(), res.Docket.Digest())
	e.advance()
	res.Status = StatusDiscarded
	res.Reason = reason
	return res
}

func others(actives []directory.ValidatorInfo, self string) []directory.ValidatorInfo {
	peers := make([]directory.ValidatorInfo, 0, len(actives))
	for _, v := range actives {
		if v.ID != self {
			peers = append(peers, v)
		}
	}
	return peers
}

// collectVotes requests votes from every other active validator until the
// quorum is met or the vote timeout elapses. Votes are verified against the
// directory public keys.
func (e *Engine) collectVotes(ctx context.Context, d *docket.Docket, actives []directory.ValidatorInfo, cfg *genesis.Config) *voteSet {
	votes := newVoteSet(d.Digest(), actives, cfg.Consensus.Quorum(len(actives)), e.opts.Signer)
	for _, v := range d.Votes {
		votes.addVote(v)
	}
	peers := others(actives, e.opts.ValidatorID)
	if votes.reached() || len(peers) == 0 {
		return votes
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Consensus.VoteTimeout.Std())
	defer cancel()

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, peer := range peers {
		g.Go(func() error {
			vote, err := e.opts.Network.RequestVote(gctx, peer, d)
			if err != nil {
				logger.Debug("no vote", "register", e.opts.RegisterID, "peer", peer.ID, "err", err)
				return nil
			}
			e.tracker.Touch(peer.ID)

			mu.Lock()
			defer mu.Unlock()
			if !votes.addVote(vote) {
				logger.Debug("invalid vote", "register", e.opts.RegisterID, "peer", peer.ID)
				return nil
			}
			if votes.reached() {
				cancel()
			}
			return nil
		})
	}
	g.Wait()

	mu.Lock()
	defer mu.Unlock()
	return votes
}

func (e *Engine) write(ctx context.Context, d *docket.Docket) error {
	return e.opts.Retry.Do(ctx, func(ctx context.Context) error {
		err := e.opts.Ledger.WriteDocket(ctx, d)
		if err != nil && !ledger.IsUnavailable(err) && !chain.IsConflict(err) && !chain.IsDuplicateTx(err) && !isLinkError(err) {
			err = ledger.Unavailable("ledger", err)
		}
		return err
	})
}

func isLinkError(err error) bool {
	return errors.Is(err, docket.ErrBrokenLink) || errors.Is(err, docket.ErrBadNumber) || errors.Is(err, docket.ErrMerkleMismatch)
}
