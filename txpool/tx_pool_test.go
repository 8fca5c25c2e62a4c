// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/lvldb"
	"github.com/StuartF303/Sorcha-sub006/test/datagen"
	"github.com/StuartF303/Sorcha-sub006/tx"
	"github.com/StuartF303/Sorcha-sub006/validation"
)

const reg = "reg"

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newPool(f *datagen.TxFactory, limit int) *TxPool {
	v := validation.New(f.Keyring(), f.Registry(), validation.Options{RegisterID: reg})
	return New(v, Options{RegisterID: reg, Limit: limit})
}

func submit(t *testing.T, p *TxPool, trx *tx.Transaction) validation.Result {
	res, err := p.Submit(context.Background(), trx)
	require.NoError(t, err)
	return res
}

func TestSubmitAndTake(t *testing.T) {
	f := datagen.NewTxFactory()
	p := newPool(f, 10)
	defer p.Close()

	var ids []string
	for range 5 {
		trx := f.New(reg)
		ids = append(ids, trx.ID())
		assert.Equal(t, tx.StatusAccepted, submit(t, p, trx).Status)
	}

	assert.Equal(t, 5, p.Len())
	assert.Equal(t, ids[:3], p.TakeBatch(3).IDs())
	assert.Equal(t, ids, p.Dump().IDs())
	// peek only
	assert.Equal(t, 5, p.Len())
	assert.NotNil(t, p.Get(ids[0]))

	assert.Equal(t, 2, p.Evict(ids[0], ids[1], "unknown"))
	assert.Equal(t, ids[2:], p.Dump().IDs())
	assert.Nil(t, p.Get(ids[0]))

	assert.Equal(t, 3, p.Clear())
	assert.Equal(t, 0, p.Len())
}

func TestSubmitRejectsInvalid(t *testing.T) {
	f := datagen.NewTxFactory()
	p := newPool(f, 10)
	defer p.Close()

	res := submit(t, p, f.New(reg).WithPayload(json.RawMessage(`{"amount": 7}`)))
	assert.Equal(t, tx.StatusInvalidDigest, res.Status)
	assert.Equal(t, 0, p.Len())
}

func TestSubmitDuplicate(t *testing.T) {
	f := datagen.NewTxFactory()
	p := newPool(f, 10)
	defer p.Close()

	first := f.New(reg)
	assert.True(t, submit(t, p, first).Accepted())

	again := f.Sign(f.Builder(reg).ID(first.ID()).Payload(json.RawMessage(`{"amount": 42}`)).Build())
	assert.Equal(t, tx.StatusDuplicate, submit(t, p, again).Status)
	assert.Equal(t, tx.StatusDuplicate, submit(t, p, first).Status)

	assert.Equal(t, first.PayloadDigest(), p.Get(first.ID()).PayloadDigest())
	assert.Equal(t, 1, p.Len())
}

func TestSubmitPoolFull(t *testing.T) {
	f := datagen.NewTxFactory()
	p := newPool(f, 2)
	defer p.Close()

	a, b := f.New(reg), f.New(reg)
	submit(t, p, a)
	submit(t, p, b)

	assert.Equal(t, tx.StatusPoolFull, submit(t, p, f.New(reg)).Status)
	assert.Equal(t, []string{a.ID(), b.ID()}, p.Dump().IDs())
}

func TestSubmitConcurrent(t *testing.T) {
	f := datagen.NewTxFactory()
	p := newPool(f, 50)
	defer p.Close()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		full     int
	)
	for range 80 {
		trx := f.New(reg)
		wg.Go(func() {
			res, err := p.Submit(context.Background(), trx)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			switch res.Status {
			case tx.StatusAccepted:
				accepted++
			case tx.StatusPoolFull:
				full++
			}
		})
	}
	wg.Wait()
	assert.Equal(t, 50, accepted)
	assert.Equal(t, 30, full)
	assert.Equal(t, 50, p.Len())
}

func TestLazyExpiry(t *testing.T) {
	f := datagen.NewTxFactory()
	c := &clock{now: time.Now()}
	v := validation.New(f.Keyring(), f.Registry(), validation.Options{Now: c.Now})
	p := New(v, Options{RegisterID: reg, Now: c.Now})
	defer p.Close()

	short := f.Sign(f.Builder(reg).Timestamp(c.Now()).Expiry(c.Now().Add(time.Minute)).Build())
	long := f.Sign(f.Builder(reg).Timestamp(c.Now()).Build())
	require.True(t, submit(t, p, short).Accepted())
	require.True(t, submit(t, p, long).Accepted())

	c.Advance(2 * time.Minute)
	assert.Equal(t, []string{long.ID()}, p.TakeBatch(10).IDs())
	assert.Nil(t, p.Get(short.ID()))

	// purged entries no longer block their id
	again := f.Sign(f.Builder(reg).ID(short.ID()).Timestamp(c.Now()).Build())
	assert.True(t, submit(t, p, again).Accepted())
}

func TestStats(t *testing.T) {
	f := datagen.NewTxFactory()
	c := &clock{now: time.Now()}
	v := validation.New(f.Keyring(), f.Registry(), validation.Options{})
	p := New(v, Options{RegisterID: reg, Now: c.Now})
	defer p.Close()

	stats := p.Stats()
	assert.Equal(t, Stats{RegisterID: reg, Capacity: ledger.DefaultPoolLimit}, stats)

	first := c.Now()
	submit(t, p, f.New(reg))
	c.Advance(time.Second)
	submit(t, p, f.New(reg))

	stats = p.Stats()
	assert.Equal(t, 2, stats.Count)
	assert.True(t, stats.Oldest.Equal(first))
	assert.True(t, stats.Newest.Equal(first.Add(time.Second)))
}

func TestSubscribeTxEvent(t *testing.T) {
	f := datagen.NewTxFactory()
	p := newPool(f, 10)

	ch := make(chan *TxEvent, 1)
	sub := p.SubscribeTxEvent(ch)
	defer sub.Unsubscribe()

	trx := f.New(reg)
	submit(t, p, trx)

	select {
	case ev := <-ch:
		assert.Equal(t, trx.ID(), ev.Tx.ID())
		assert.Equal(t, reg, ev.RegisterID)
	case <-time.After(time.Second):
		t.Fatal("no tx event")
	}

	p.Close()
	select {
	case <-sub.Err():
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}

type flakyValidator struct {
	inner Validator
	fail  bool
}

func (v *flakyValidator) Validate(ctx context.Context, trx *tx.Transaction) (validation.Result, error) {
	if v.fail {
		return validation.Result{}, ledger.Unavailable("blueprint service", errors.New("timeout"))
	}
	return v.inner.Validate(ctx, trx)
}

func TestSubmitUnavailable(t *testing.T) {
	f := datagen.NewTxFactory()
	fv := &flakyValidator{inner: validation.New(f.Keyring(), f.Registry(), validation.Options{}), fail: true}
	p := New(fv, Options{RegisterID: reg})
	defer p.Close()

	trx := f.New(reg)
	_, err := p.Submit(context.Background(), trx)
	assert.True(t, ledger.IsUnavailable(err))
	assert.Equal(t, 0, p.Len())

	fv.fail = false
	assert.True(t, submit(t, p, trx).Accepted())
}

func TestPersistAndLoad(t *testing.T) {
	f := datagen.NewTxFactory()
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	defer db.Close()

	p := newPool(f, 10)
	var ids []string
	for i := range 4 {
		trx := f.Sign(f.Builder(reg).Payload(json.RawMessage(fmt.Sprintf(`{"amount": %d}`, i+1))).Build())
		ids = append(ids, trx.ID())
		submit(t, p, trx)
	}
	n, err := p.Persist(db)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	p.Close()

	restored := newPool(f, 10)
	defer restored.Close()
	n, err = restored.Load(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, ids, restored.Dump().IDs())

	// snapshot is consumed
	n, err = newPool(f, 10).Load(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSnapshotCodec(t *testing.T) {
	f := datagen.NewTxFactory()
	txs := tx.Transactions{f.New(reg), f.New(reg)}

	data, err := EncodeSnapshot(txs)
	require.NoError(t, err)
	decoded, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, txs.IDs(), decoded.IDs())
	assert.Equal(t, txs.Digests(), decoded.Digests())

	_, err = DecodeSnapshot([]byte("garbage"))
	assert.Error(t, err)
}

type committedSet struct {
	ids map[string]bool
	err error
}

func (c *committedSet) HasTransaction(_ context.Context, registerID, txID string) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	return registerID == reg && c.ids[txID], nil
}

func TestSubmitRejectsCommitted(t *testing.T) {
	f := datagen.NewTxFactory()
	committed := &committedSet{ids: map[string]bool{}}
	v := validation.New(f.Keyring(), f.Registry(), validation.Options{RegisterID: reg})
	p := New(v, Options{RegisterID: reg, Limit: 10, Committed: committed})
	defer p.Close()

	trx := f.New(reg)
	assert.Equal(t, tx.StatusAccepted, submit(t, p, trx).Status)

	// included in a confirmed docket and evicted
	committed.ids[trx.ID()] = true
	assert.Equal(t, 1, p.Evict(trx.ID()))

	res := submit(t, p, trx)
	assert.Equal(t, tx.StatusDuplicate, res.Status)
	assert.Equal(t, "transaction already committed", res.Reason)
	assert.Equal(t, 0, p.Len())

	n, err := p.Restore(context.Background(), tx.Transactions{trx, f.New(reg)})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	committed.err = errors.New("disk error")
	_, err = p.Submit(context.Background(), f.New(reg))
	assert.True(t, ledger.IsUnavailable(err))
	assert.Equal(t, 1, p.Len())
}
