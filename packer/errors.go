// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import "errors"

// ErrNoTransactions is the benign outcome of building from an empty pool.
var ErrNoTransactions = errors.New("no transactions to pack")

// IsNoTransactions returns whether err reports an empty pool.
func IsNoTransactions(err error) bool {
	return errors.Is(err, ErrNoTransactions)
}
