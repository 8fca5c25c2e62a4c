// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package packer builds proposed dockets from pooled transactions.
package packer

import (
	"context"
	"time"

	"github.com/pborman/uuid"
	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/log"
	"github.com/StuartF303/Sorcha-sub006/signing"
	"github.com/StuartF303/Sorcha-sub006/tx"
)

var logger = log.WithContext("pkg", "packer")

// Pool is the view of the mempool the packer needs.
type Pool interface {
	TakeBatch(maxCount int) tx.Transactions
	Evict(ids ...string) int
}

// Packer to pack pooled txs into a proposed docket.
type Packer struct {
	registerID string
	proposer   string // validator id
	keyRef     string
	signer     signing.Signer
	pool       Pool
	ledger     chain.Ledger
	retry      ledger.RetryPolicy
	now        func() time.Time
}

// New create a new Packer instance.
func New(
	registerID string,
	proposer string,
	keyRef string,
	signer signing.Signer,
	pool Pool,
	ldg chain.Ledger,
	retry ledger.RetryPolicy,
) *Packer {
	return &Packer{
		registerID: registerID,
		proposer:   proposer,
		keyRef:     keyRef,
		signer:     signer,
		pool:       pool,
		ledger:     ldg,
		retry:      retry,
		now:        time.Now,
	}
}

// Latest returns the latest confirmed docket of the register, nil if there is none.
func (p *Packer) Latest(ctx context.Context) (*docket.Docket, error) {
	var latest *docket.Docket
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		d, err := p.ledger.ReadLatestDocket(ctx, p.registerID)
		if err != nil {
			if chain.IsNotFound(err) {
				return nil
			}
			if !ledger.IsUnavailable(err) {
				err = ledger.Unavailable("ledger", err)
			}
			return err
		}
		latest = d
		return nil
	})
	return latest, err
}

// committed returns the ids of txs already included in a confirmed docket.
func (p *Packer) committed(ctx context.Context, txs tx.Transactions) ([]string, error) {
	var ids []string
	err := p.retry.Do(ctx, func(ctx context.Context) error {
		ids = ids[:0]
		for _, trx := range txs {
			ok, err := p.ledger.HasTransaction(ctx, p.registerID, trx.ID())
			if err != nil {
				if !ledger.IsUnavailable(err) {
					err = ledger.Unavailable("ledger", err)
				}
				return err
			}
			if ok {
				ids = append(ids, trx.ID())
			}
		}
		return nil
	})
	return ids, err
}

// Build assembles up to maxTxs pooled transactions into a signed proposed
// docket for round. Transactions stay in the pool, except those a confirmed
// docket already includes, which are evicted. ErrNoTransactions is returned
// when the pool is empty.
func (p *Packer) Build(ctx context.Context, round uint64, maxTxs int) (*docket.Docket, error) {
	if maxTxs <= 0 {
		return nil, errors.New("max transactions per docket must be positive")
	}
	var txs tx.Transactions
	for {
		if txs = p.pool.TakeBatch(maxTxs); len(txs) == 0 {
			return nil, ErrNoTransactions
		}
		stale, err := p.committed(ctx, txs)
		if err != nil {
			return nil, err
		}
		if len(stale) == 0 {
			break
		}
		p.pool.Evict(stale...)
		logger.Debug("evicted committed txs", "register", p.registerID, "count", len(stale))
	}

	prev, err := p.Latest(ctx)
	if err != nil {
		return nil, err
	}

	header := docket.Header{
		ID:         uuid.NewRandom().String(),
		RegisterID: p.registerID,
		Proposer:   p.proposer,
		Round:      round,
		Timestamp:  p.now().UTC(),
	}
	if prev != nil {
		header.Number = prev.Number() + 1
		header.PreviousDigest = prev.Digest()
	}

	d := docket.New(header, txs)
	digest := d.Digest()
	sig, err := p.signer.Sign(digest.Bytes(), p.keyRef)
	if err != nil {
		return nil, errors.Wrap(err, "sign docket")
	}
	d.ProposerSignature = sig
	d.AddVote(docket.Vote{ValidatorID: p.proposer, Signature: sig})

	metricPackedTxs().Observe(int64(len(txs)))
	logger.Debug("docket packed", "register", p.registerID, "number", header.Number, "txs", len(txs), "digest", digest.AbbrevString())
	return d, nil
}
