// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validator

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"

	"github.com/StuartF303/Sorcha-sub006/comm"
	"github.com/StuartF303/Sorcha-sub006/consensus"
	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/genesis"
	"github.com/StuartF303/Sorcha-sub006/rounddb"
	"github.com/StuartF303/Sorcha-sub006/txpool"
	"github.com/StuartF303/Sorcha-sub006/validation"
)

// Instance owns the state of one register: its mempool, directory cache,
// genesis config and consensus engine.
type Instance struct {
	registerID string
	startedAt  time.Time

	genesis   *genesis.Loader
	directory *directory.Directory
	pipeline  *validation.Pipeline
	pool      *txpool.TxPool
	engine    *consensus.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (inst *Instance) config() *genesis.Config {
	if cfg := inst.genesis.Cached(); cfg != nil {
		return cfg
	}
	return genesis.DefaultConfig()
}

func (inst *Instance) goLoop(f func()) {
	inst.wg.Add(1)
	go func() {
		defer inst.wg.Done()
		f()
	}()
}

func (inst *Instance) stopLoops() {
	inst.cancel()
	inst.wg.Wait()
}

// heartbeatLoop announces liveness to the other active validators every
// heartbeat interval.
func (o *Orchestrator) heartbeatLoop(ctx context.Context, inst *Instance) {
	for {
		interval := inst.config().LeaderElection.HeartbeatInterval.Std()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		o.sendHeartbeats(ctx, inst)
	}
}

func (o *Orchestrator) sendHeartbeats(ctx context.Context, inst *Instance) {
	actives, err := inst.directory.Active(ctx)
	if err != nil {
		logger.Debug("heartbeat skipped", "register", inst.registerID, "err", err)
		return
	}
	hb := comm.Heartbeat{
		RegisterID:  inst.registerID,
		ValidatorID: o.opts.ValidatorID,
		Round:       inst.engine.Round(),
		Timestamp:   o.opts.Now().UTC(),
	}
	for _, peer := range actives {
		if peer.ID == o.opts.ValidatorID {
			continue
		}
		ctx, cancel := context.WithTimeout(ctx, o.callTimeout())
		if err := o.opts.Network.Heartbeat(ctx, peer, hb); err != nil {
			logger.Trace("heartbeat failed", "register", inst.registerID, "peer", peer.ID, "err", err)
		}
		cancel()
	}
}

// roundLoop runs a round every docket build interval, and early when the
// pool holds a full docket.
func (o *Orchestrator) roundLoop(ctx context.Context, inst *Instance) {
	txCh := make(chan *txpool.TxEvent, 64)
	sub := inst.pool.SubscribeTxEvent(txCh)
	defer sub.Unsubscribe()

	timer := time.NewTimer(inst.config().Consensus.DocketBuildInterval.Std())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Err():
			return
		case <-txCh:
			if inst.pool.Len() < inst.config().Consensus.MaxTxPerDocket {
				continue
			}
		case <-timer.C:
		}

		o.processRound(ctx, inst)
		timer.Reset(inst.config().Consensus.DocketBuildInterval.Std())
	}
}

func (o *Orchestrator) processRound(ctx context.Context, inst *Instance) (*consensus.Result, error) {
	start := mclock.Now()
	res, err := inst.engine.RunRound(ctx)
	if err != nil {
		if !consensus.IsRoundInProgress(err) {
			o.record(ctx, inst, &rounddb.Record{
				RegisterID: inst.registerID,
				Round:      inst.engine.Round(),
				Status:     "unavailable",
				Reason:     err.Error(),
				Elapsed:    time.Duration(mclock.Now() - start),
			})
		}
		return nil, err
	}
	rec := &rounddb.Record{
		RegisterID: inst.registerID,
		Round:      res.Round,
		Status:     string(res.Status),
		Leader:     res.Leader,
		Votes:      res.Votes,
		Quorum:     res.Quorum,
		Reason:     res.Reason,
		Elapsed:    time.Duration(mclock.Now() - start),
	}
	if res.Docket != nil {
		number, digest := res.Docket.Number(), res.Docket.Digest()
		rec.DocketNumber, rec.DocketDigest = &number, &digest
		rec.TxCount = len(res.Docket.Transactions)
	}
	if res.Status != consensus.StatusNotLeader && res.Status != consensus.StatusNoTransactions {
		o.record(ctx, inst, rec)
	}
	return res, nil
}

func (o *Orchestrator) record(ctx context.Context, inst *Instance, rec *rounddb.Record) {
	if o.opts.Rounds == nil {
		return
	}
	rec.RecordedAt = o.opts.Now()
	if err := o.opts.Rounds.Record(ctx, rec); err != nil {
		logger.Warn("failed to record round", "register", inst.registerID, "err", err)
	}
}
