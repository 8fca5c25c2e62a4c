// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"context"
	"encoding/json"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/kv"
	"github.com/StuartF303/Sorcha-sub006/tx"
)

// EncodeSnapshot encodes txs as snappy compressed JSON.
func EncodeSnapshot(txs tx.Transactions) ([]byte, error) {
	data, err := json.Marshal(txs)
	if err != nil {
		return nil, err
	}
	return snappy.Encode(nil, data), nil
}

// DecodeSnapshot reverses EncodeSnapshot.
func DecodeSnapshot(data []byte) (tx.Transactions, error) {
	raw, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, "decompress snapshot")
	}
	var txs tx.Transactions
	if err := json.Unmarshal(raw, &txs); err != nil {
		return nil, errors.Wrap(err, "decode snapshot")
	}
	return txs, nil
}

func snapshotKey(registerID string) []byte {
	return []byte(registerID)
}

// Persist writes the pool contents to store under the register id.
// An empty pool removes any previous snapshot.
func (p *TxPool) Persist(store kv.Putter) (int, error) {
	txs := p.Dump()
	if len(txs) == 0 {
		return 0, store.Delete(snapshotKey(p.options.RegisterID))
	}
	data, err := EncodeSnapshot(txs)
	if err != nil {
		return 0, err
	}
	if err := store.Put(snapshotKey(p.options.RegisterID), data); err != nil {
		return 0, errors.Wrap(err, "persist mempool")
	}
	return len(txs), nil
}

// Load restores a snapshot written by Persist and deletes it once every
// transaction went through the pipeline.
func (p *TxPool) Load(ctx context.Context, store kv.Store) (int, error) {
	key := snapshotKey(p.options.RegisterID)
	data, err := store.Get(key)
	if err != nil {
		if store.IsNotFound(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "read mempool snapshot")
	}
	txs, err := DecodeSnapshot(data)
	if err != nil {
		return 0, err
	}
	n, err := p.Restore(ctx, txs)
	if err != nil {
		return n, err
	}
	return n, store.Delete(key)
}
