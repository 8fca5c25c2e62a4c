// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consensus

import (
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/ledger"
)

// Voter is the follower side of a round: it votes on proposed dockets and
// applies confirmed ones broadcast by peers.
type Voter struct {
	engine *Engine
}

// Voter returns the voter sharing the engine's collaborators.
func (e *Engine) Voter() *Voter {
	return &Voter{engine: e}
}

func (v *Voter) opts() *Options { return &v.engine.opts }

// latest returns the latest confirmed docket, nil when there is none.
func (v *Voter) latest(ctx context.Context) (*docket.Docket, error) {
	return v.engine.packer.Latest(ctx)
}

// verifyLeader checks the proposer leads the docket's round and the round is
// not behind the local one.
func (v *Voter) verifyLeader(ctx context.Context, d *docket.Docket) error {
	if local := v.engine.Round(); d.Header.Round < local {
		return invalidDocket("stale round %d, local round %d", d.Header.Round, local)
	}
	elector, err := v.opts().Config().Elector()
	if err != nil {
		return err
	}
	actives, err := v.opts().Directory.Active(ctx)
	if err != nil {
		return err
	}
	leader, err := elector.Leader(d.Header.Round, actives)
	if err != nil {
		return errors.Wrap(err, "elect leader")
	}
	if leader.ID != d.Header.Proposer {
		return invalidDocket("proposer %s does not lead round %d", d.Header.Proposer, d.Header.Round)
	}
	return nil
}

// verifyProposer checks the proposer is an active validator and signed the digest.
func (v *Voter) verifyProposer(ctx context.Context, d *docket.Docket) error {
	proposer, ok, err := v.opts().Directory.Get(ctx, d.Header.Proposer)
	if err != nil {
		return err
	}
	if !ok || !proposer.Active {
		return invalidDocket("proposer %s is not an active validator", d.Header.Proposer)
	}
	sig := d.ProposerSignature
	if !bytes.Equal(sig.PublicKey, proposer.PublicKey) {
		return invalidDocket("proposer key mismatch")
	}
	if ok, err := v.opts().Signer.Verify(sig, d.Digest().Bytes()); err != nil || !ok {
		return invalidDocket("bad proposer signature")
	}
	v.engine.tracker.Touch(proposer.ID)
	return nil
}

// Vote re-validates a docket proposed by a peer and returns the local vote.
// It re-derives the merkle root and chain linkage, checks the proposer leads
// the docket's round and runs the validation pipeline over every
// transaction. At most one digest is signed per docket number while the
// vote is held. An error satisfying IsInvalidDocket means the vote is
// withheld.
func (v *Voter) Vote(ctx context.Context, d *docket.Docket) (docket.Vote, error) {
	opts := v.opts()
	if d.Header.RegisterID != opts.RegisterID {
		return docket.Vote{}, invalidDocket("wrong register %s", d.Header.RegisterID)
	}
	if d.Status != docket.StatusProposed {
		return docket.Vote{}, invalidDocket("status %s", d.Status)
	}
	if n, max := len(d.Transactions), opts.Config().Consensus.MaxTxPerDocket; n == 0 || n > max {
		return docket.Vote{}, invalidDocket("%d transactions, want 1..%d", n, max)
	}
	if err := d.VerifyMerkleRoot(); err != nil {
		return docket.Vote{}, invalidDocket("%v", err)
	}
	if err := v.verifyProposer(ctx, d); err != nil {
		return docket.Vote{}, err
	}
	if err := v.verifyLeader(ctx, d); err != nil {
		return docket.Vote{}, err
	}

	prev, err := v.latest(ctx)
	if err != nil {
		return docket.Vote{}, err
	}
	if err := d.VerifyLink(prev); err != nil {
		return docket.Vote{}, invalidDocket("%v", err)
	}

	seen := make(map[string]bool, len(d.Transactions))
	for _, trx := range d.Transactions {
		if seen[trx.ID()] {
			return docket.Vote{}, invalidDocket("duplicate transaction %s", trx.ID())
		}
		seen[trx.ID()] = true
		committed, err := opts.Ledger.HasTransaction(ctx, opts.RegisterID, trx.ID())
		if err != nil {
			if !ledger.IsUnavailable(err) {
				err = ledger.Unavailable("ledger", err)
			}
			return docket.Vote{}, err
		}
		if committed {
			return docket.Vote{}, invalidDocket("transaction %s already committed", trx.ID())
		}
		res, err := opts.Validator.Validate(ctx, trx)
		if err != nil {
			return docket.Vote{}, err
		}
		if !res.Accepted() {
			return docket.Vote{}, invalidDocket("transaction %s: %s", trx.ID(), res.Status)
		}
	}

	hold := opts.Config().Consensus.VoteTimeout.Std()
	if held, ok := v.engine.votes.acquire(d.Number(), d.Header.Round, d.Digest(), opts.Now(), hold); !ok {
		return docket.Vote{}, invalidDocket("already voted for %s at number %d in round %d",
			held.digest.AbbrevString(), d.Number(), held.round)
	}
	sig, err := opts.Signer.Sign(d.Digest().Bytes(), opts.KeyRef)
	if err != nil {
		return docket.Vote{}, errors.Wrap(err, "sign vote")
	}
	v.engine.SyncRound(d.Header.Round)
	logger.Debug("voted", "register", opts.RegisterID, "number", d.Number(), "proposer", d.Header.Proposer)
	return docket.Vote{ValidatorID: opts.ValidatorID, Signature: sig}, nil
}

// Accept applies a confirmed docket broadcast by a peer: it checks the votes
// reach the quorum of the current active set and the docket extends the
// local chain, then writes it and evicts its transactions. A docket already
// held is ignored.
func (v *Voter) Accept(ctx context.Context, d *docket.Docket) error {
	opts := v.opts()
	if d.Header.RegisterID != opts.RegisterID {
		return invalidDocket("wrong register %s", d.Header.RegisterID)
	}
	if d.Status != docket.StatusConfirmed {
		return invalidDocket("status %s", d.Status)
	}
	if err := d.VerifyMerkleRoot(); err != nil {
		return invalidDocket("%v", err)
	}

	prev, err := v.latest(ctx)
	if err != nil {
		return err
	}
	if prev != nil && d.Number() <= prev.Number() {
		held, err := opts.Ledger.ReadDocket(ctx, opts.RegisterID, d.Number())
		if err != nil {
			return err
		}
		if held.Digest() != d.Digest() {
			return invalidDocket("conflicts with held docket %d", d.Number())
		}
		return nil
	}
	if err := d.VerifyLink(prev); err != nil {
		return invalidDocket("%v", err)
	}

	actives, err := opts.Directory.Active(ctx)
	if err != nil {
		return err
	}
	cfg := opts.Config()
	votes := newVoteSet(d.Digest(), actives, cfg.Consensus.Quorum(len(actives)), opts.Signer)
	for _, vote := range d.Votes {
		votes.addVote(vote)
	}
	if !votes.reached() {
		return invalidDocket("%d valid votes, quorum %d", votes.count(), votes.threshold)
	}

	err = opts.Retry.Do(ctx, func(ctx context.Context) error {
		err := opts.Ledger.WriteDocket(ctx, d)
		if err != nil && !ledger.IsUnavailable(err) && !chain.IsConflict(err) && !isLinkError(err) {
			err = ledger.Unavailable("ledger", err)
		}
		if chain.IsDuplicateTx(err) {
			err = invalidDocket("%v", err)
		}
		return err
	})
	if err != nil {
		return err
	}
	opts.Pool.Evict(d.TxIDs()...)
	v.engine.votes.release(d.Number())
	v.engine.tracker.Touch(d.Header.Proposer)
	v.engine.SyncRound(d.Header.Round + 1)
	metricDocketConfirmed().AddWithLabel(1, map[string]string{"source": "accepted"})
	logger.Info("accepted confirmed docket", "register", opts.RegisterID, "number", d.Number(), "proposer", d.Header.Proposer)
	return nil
}
