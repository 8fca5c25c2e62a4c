// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import (
	"time"

	"github.com/StuartF303/Sorcha-sub006/tx"
)

// txObject wraps a pooled transaction with its admission order.
type txObject struct {
	*tx.Transaction
	seq       uint64
	timeAdded time.Time
}

type txObjects []*txObject

func (objs txObjects) transactions() tx.Transactions {
	txs := make(tx.Transactions, 0, len(objs))
	for _, obj := range objs {
		txs = append(txs, obj.Transaction)
	}
	return txs
}
