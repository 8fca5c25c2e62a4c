// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/event"

	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/log"
	"github.com/StuartF303/Sorcha-sub006/tx"
	"github.com/StuartF303/Sorcha-sub006/validation"
)

var logger = log.WithContext("pkg", "txpool")

// Options options for tx pool.
type Options struct {
	RegisterID string
	Limit      int
	Now        func() time.Time
	Committed  Committed // optional
}

// Committed reports transactions already included in a confirmed docket.
type Committed interface {
	HasTransaction(ctx context.Context, registerID, txID string) (bool, error)
}

// TxEvent will be posted when a tx is admitted.
type TxEvent struct {
	RegisterID string
	Tx         *tx.Transaction
}

// Validator gates admission.
type Validator interface {
	Validate(ctx context.Context, trx *tx.Transaction) (validation.Result, error)
}

// Stats is a derived view of the pool contents.
type Stats struct {
	RegisterID string     `json:"registerId"`
	Count      int        `json:"count"`
	Capacity   int        `json:"capacity"`
	Oldest     *time.Time `json:"oldest,omitempty"`
	Newest     *time.Time `json:"newest,omitempty"`
}

// TxPool holds validated transactions of one register awaiting inclusion
// in a confirmed docket. Expired entries are purged lazily on access.
type TxPool struct {
	options   Options
	validator Validator
	all       *txObjectMap

	txFeed event.Feed
	scope  event.SubscriptionScope
}

// New create a new TxPool instance.
// Close is required to be called at end.
func New(validator Validator, options Options) *TxPool {
	if options.Limit <= 0 {
		options.Limit = ledger.DefaultPoolLimit
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return &TxPool{
		options:   options,
		validator: validator,
		all:       newTxObjectMap(),
	}
}

// Close cleanup inner subscriptions.
func (p *TxPool) Close() {
	p.scope.Close()
	logger.Debug("closed", "register", p.options.RegisterID)
}

// SubscribeTxEvent receivers will receive a tx event for every admitted tx.
func (p *TxPool) SubscribeTxEvent(ch chan *TxEvent) event.Subscription {
	return p.scope.Track(p.txFeed.Subscribe(ch))
}

func (p *TxPool) purge() {
	if expired := p.all.PurgeExpired(p.options.Now()); len(expired) > 0 {
		logger.Debug("expired txs purged", "register", p.options.RegisterID, "count", len(expired))
		p.updateGauge()
	}
}

func (p *TxPool) updateGauge() {
	metricTxPoolGauge().SetWithLabel(int64(p.all.Len()), map[string]string{"register": p.options.RegisterID})
}

// Submit validates trx and admits it. Rejections are reported in the result.
// A non nil error means validation could not complete because a collaborator
// was unavailable, and the pool is left as it was.
func (p *TxPool) Submit(ctx context.Context, trx *tx.Transaction) (validation.Result, error) {
	p.purge()

	// cheap checks before the pipeline, repeated under the lock by add
	if p.all.Contains(trx.ID()) {
		return validation.Result{Status: tx.StatusDuplicate, Reason: errKnownTx.Error()}, nil
	}
	if p.all.Len() >= p.options.Limit {
		return validation.Result{Status: tx.StatusPoolFull, Reason: errPoolFull.Error()}, nil
	}
	if p.options.Committed != nil && trx.ID() != "" {
		committed, err := p.options.Committed.HasTransaction(ctx, p.options.RegisterID, trx.ID())
		if err != nil {
			if !ledger.IsUnavailable(err) {
				err = ledger.Unavailable("ledger", err)
			}
			return validation.Result{}, err
		}
		if committed {
			return validation.Result{Status: tx.StatusDuplicate, Reason: errCommittedTx.Error()}, nil
		}
	}

	res, err := p.validator.Validate(ctx, trx)
	if err != nil || !res.Accepted() {
		return res, err
	}
	return p.add(trx), nil
}

func (p *TxPool) add(trx *tx.Transaction) validation.Result {
	obj := &txObject{Transaction: trx, timeAdded: p.options.Now()}
	switch err := p.all.Add(obj, p.options.Limit); {
	case IsErrKnownTx(err):
		return validation.Result{Status: tx.StatusDuplicate, Reason: err.Error()}
	case IsErrPoolFull(err):
		return validation.Result{Status: tx.StatusPoolFull, Reason: err.Error()}
	}

	logger.Debug("tx admitted", "register", p.options.RegisterID, "id", trx.ID())
	metricTxAdmitted().AddWithLabel(1, map[string]string{"register": p.options.RegisterID})
	p.updateGauge()
	p.txFeed.Send(&TxEvent{RegisterID: p.options.RegisterID, Tx: trx})
	return validation.Result{Status: tx.StatusAccepted}
}

// Restore re-admits previously pooled transactions through the pipeline,
// preserving their order. Rejected ones are dropped. It stops at the first
// collaborator failure and returns how many were restored so far.
func (p *TxPool) Restore(ctx context.Context, txs tx.Transactions) (int, error) {
	restored := 0
	for _, trx := range txs {
		res, err := p.Submit(ctx, trx)
		if err != nil {
			return restored, err
		}
		if res.Accepted() {
			restored++
		} else {
			logger.Debug("dropped on restore", "id", trx.ID(), "status", res.Status)
		}
	}
	return restored, nil
}

// Get returns the pooled tx by id, or nil.
func (p *TxPool) Get(id string) *tx.Transaction {
	p.purge()
	if obj := p.all.Get(id); obj != nil {
		return obj.Transaction
	}
	return nil
}

// TakeBatch returns up to maxCount txs in admission order without removing them.
func (p *TxPool) TakeBatch(maxCount int) tx.Transactions {
	p.purge()
	objs := p.all.ToSorted()
	if maxCount >= 0 && len(objs) > maxCount {
		objs = objs[:maxCount]
	}
	return objs.transactions()
}

// Evict removes the given txs and returns how many were pooled.
func (p *TxPool) Evict(ids ...string) int {
	n := p.all.Remove(ids...)
	if n > 0 {
		p.updateGauge()
	}
	return n
}

// Clear drops every pooled tx.
func (p *TxPool) Clear() int {
	n := p.all.Clear()
	p.updateGauge()
	return n
}

// Dump dumps all pooled txs in admission order.
func (p *TxPool) Dump() tx.Transactions {
	return p.TakeBatch(-1)
}

// Len returns count of pooled txs.
func (p *TxPool) Len() int {
	p.purge()
	return p.all.Len()
}

// Stats computes the pool statistics.
func (p *TxPool) Stats() Stats {
	p.purge()
	objs := p.all.ToSorted()
	stats := Stats{
		RegisterID: p.options.RegisterID,
		Count:      len(objs),
		Capacity:   p.options.Limit,
	}
	if len(objs) > 0 {
		oldest, newest := objs[0].timeAdded, objs[len(objs)-1].timeAdded
		stats.Oldest, stats.Newest = &oldest, &newest
	}
	return stats
}
