// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"

	"github.com/ethereum/go-ethereum/event"
	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/cache"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/kv"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/log"
)

const (
	docketStoreName = "chain.docket" // register id, 0x00, big endian number => docket json
	headStoreName   = "chain.head"   // register id => latest number
	txStoreName     = "chain.tx"     // register id, 0x00, tx id => docket number

	docketCacheSize = 256
)

var logger = log.WithContext("pkg", "chain")

type docketKey struct {
	registerID string
	number     uint64
}

// NewDocketEvent is posted after a docket is written.
type NewDocketEvent struct {
	Docket *docket.Docket
}

// Repository stores confirmed dockets in a kv store. Writes enforce the
// number sequence and previous digest link of each register.
//
// It's thread-safe.
type Repository struct {
	store       kv.Store
	docketStore kv.Store
	headStore   kv.Store
	txStore     kv.Store

	writeLock sync.Mutex
	dockets   *cache.LRU[docketKey, *docket.Docket]

	feed  event.Feed
	scope event.SubscriptionScope
}

// NewRepository create an instance of repository.
func NewRepository(store kv.Store) *Repository {
	dockets, _ := cache.NewLRU[docketKey, *docket.Docket](docketCacheSize)
	return &Repository{
		store:       store,
		docketStore: kv.Bucket(docketStoreName).NewStore(store),
		headStore:   kv.Bucket(headStoreName).NewStore(store),
		txStore:     kv.Bucket(txStoreName).NewStore(store),
		dockets:     dockets,
	}
}

// Close ends subscriptions.
func (r *Repository) Close() {
	r.scope.Close()
}

// SubscribeNewDocket receives an event for every written docket.
func (r *Repository) SubscribeNewDocket(ch chan *NewDocketEvent) event.Subscription {
	return r.scope.Track(r.feed.Subscribe(ch))
}

func encodeKey(registerID string, number uint64) []byte {
	key := make([]byte, 0, len(registerID)+9)
	key = append(key, registerID...)
	key = append(key, 0)
	return binary.BigEndian.AppendUint64(key, number)
}

func encodeTxKey(registerID, txID string) []byte {
	key := make([]byte, 0, len(registerID)+len(txID)+1)
	key = append(key, registerID...)
	key = append(key, 0)
	return append(key, txID...)
}

// TransactionNumber returns the number of the docket that committed the
// transaction, with false when no docket of the register includes it.
func (r *Repository) TransactionNumber(ctx context.Context, registerID, txID string) (uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, ledger.Unavailable("ledger", err)
	}
	data, err := r.txStore.Get(encodeTxKey(registerID, txID))
	if err != nil {
		if r.txStore.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, errors.New("corrupted tx index record")
	}
	return binary.BigEndian.Uint64(data), true, nil
}

// HasTransaction implements Ledger.
func (r *Repository) HasTransaction(ctx context.Context, registerID, txID string) (bool, error) {
	_, ok, err := r.TransactionNumber(ctx, registerID, txID)
	return ok, err
}

// checkTxs must be called with the write lock held.
func (r *Repository) checkTxs(d *docket.Docket) error {
	seen := make(map[string]bool, len(d.Transactions))
	for _, trx := range d.Transactions {
		if seen[trx.ID()] {
			return errors.Wrapf(ErrDuplicateTx, "%s included twice", trx.ID())
		}
		seen[trx.ID()] = true
		ok, err := r.txStore.Has(encodeTxKey(d.Header.RegisterID, trx.ID()))
		if err != nil {
			return err
		}
		if ok {
			return errors.Wrapf(ErrDuplicateTx, "%s", trx.ID())
		}
	}
	return nil
}

func (r *Repository) latestNumber(registerID string) (uint64, bool, error) {
	data, err := r.headStore.Get([]byte(registerID))
	if err != nil {
		if r.headStore.IsNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if len(data) != 8 {
		return 0, false, errors.New("corrupted head record")
	}
	return binary.BigEndian.Uint64(data), true, nil
}

func (r *Repository) read(registerID string, number uint64) (*docket.Docket, error) {
	return r.dockets.GetOrLoad(docketKey{registerID, number}, func(k docketKey) (*docket.Docket, error) {
		data, err := r.docketStore.Get(encodeKey(k.registerID, k.number))
		if err != nil {
			if r.docketStore.IsNotFound(err) {
				return nil, errors.Wrapf(ledger.ErrNotFound, "docket %s/%d", k.registerID, k.number)
			}
			return nil, err
		}
		var d docket.Docket
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, errors.Wrap(err, "decode docket")
		}
		return &d, nil
	})
}

// ReadDocket implements Ledger. The returned docket must not be modified.
func (r *Repository) ReadDocket(ctx context.Context, registerID string, number uint64) (*docket.Docket, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.Unavailable("ledger", err)
	}
	return r.read(registerID, number)
}

// ReadLatestDocket implements Ledger.
func (r *Repository) ReadLatestDocket(ctx context.Context, registerID string) (*docket.Docket, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.Unavailable("ledger", err)
	}
	number, ok, err := r.latestNumber(registerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ledger.ErrNotFound, "register %s has no dockets", registerID)
	}
	return r.read(registerID, number)
}

// WriteDocket implements Ledger. The docket must be confirmed and extend the
// latest docket of its register.
func (r *Repository) WriteDocket(ctx context.Context, d *docket.Docket) error {
	if err := ctx.Err(); err != nil {
		return ledger.Unavailable("ledger", err)
	}
	if d.Status != docket.StatusConfirmed {
		return errors.Errorf("docket status %s, want %s", d.Status, docket.StatusConfirmed)
	}
	if err := d.VerifyMerkleRoot(); err != nil {
		return err
	}

	r.writeLock.Lock()
	defer r.writeLock.Unlock()

	registerID := d.Header.RegisterID
	number, ok, err := r.latestNumber(registerID)
	if err != nil {
		return err
	}

	var prev *docket.Docket
	if ok {
		if d.Number() <= number {
			return errors.Wrapf(ErrConflict, "docket %s/%d", registerID, d.Number())
		}
		if prev, err = r.read(registerID, number); err != nil {
			return err
		}
	}
	if err := d.VerifyLink(prev); err != nil {
		return err
	}
	if err := r.checkTxs(d); err != nil {
		return err
	}

	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	var head [8]byte
	binary.BigEndian.PutUint64(head[:], d.Number())

	batch := r.store.NewBatch()
	if err := kv.Bucket(docketStoreName).NewBatch(batch).Put(encodeKey(registerID, d.Number()), data); err != nil {
		return err
	}
	if err := kv.Bucket(headStoreName).NewBatch(batch).Put([]byte(registerID), head[:]); err != nil {
		return err
	}
	txBatch := kv.Bucket(txStoreName).NewBatch(batch)
	for _, trx := range d.Transactions {
		if err := txBatch.Put(encodeTxKey(registerID, trx.ID()), head[:]); err != nil {
			return err
		}
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "write docket")
	}

	stored := d.Copy()
	r.dockets.Add(docketKey{registerID, d.Number()}, stored)
	logger.Debug("docket written", "register", registerID, "number", d.Number(), "digest", d.Digest().AbbrevString())
	r.feed.Send(&NewDocketEvent{Docket: stored})
	return nil
}

// Dockets returns up to limit dockets of a register starting at from.
func (r *Repository) Dockets(ctx context.Context, registerID string, from uint64, limit int) ([]*docket.Docket, error) {
	var list []*docket.Docket
	for n := from; len(list) < limit; n++ {
		d, err := r.ReadDocket(ctx, registerID, n)
		if err != nil {
			if IsNotFound(err) {
				break
			}
			return nil, err
		}
		list = append(list, d)
	}
	return list, nil
}
