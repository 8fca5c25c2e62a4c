// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import "github.com/pkg/errors"

var (
	errKnownTx     = errors.New("known transaction")
	errCommittedTx = errors.New("transaction already committed")
	errPoolFull    = errors.New("tx pool is full")
)

func IsErrKnownTx(err error) bool {
	return err == errKnownTx
}

func IsErrPoolFull(err error) bool {
	return err == errPoolFull
}
