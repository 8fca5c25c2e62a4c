// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package registers

import (
	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/tx"
	"github.com/StuartF303/Sorcha-sub006/txpool"
)

// LifecycleResponse reports whether a start or stop changed anything.
type LifecycleResponse struct {
	RegisterID string `json:"registerId"`
	Changed    bool   `json:"changed"`
}

// SubmitResponse is the admission outcome of a transaction.
type SubmitResponse struct {
	ID     string    `json:"id"`
	Status tx.Status `json:"status"`
	Reason string    `json:"reason,omitempty"`
}

// Mempool lists the pooled transactions with their statistics.
type Mempool struct {
	Stats        txpool.Stats    `json:"stats"`
	Transactions tx.Transactions `json:"transactions,omitempty"`
}

// PendingValidators lists registrations awaiting approval.
type PendingValidators struct {
	Pending []directory.ValidatorInfo `json:"pending"`
}
