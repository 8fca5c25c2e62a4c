// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import "time"

// ControlBlueprintID marks the transaction in a genesis docket that carries the
// register's control record.
const ControlBlueprintID = "register-control"

// ControlActionID is the action id of a control record transaction.
const ControlActionID = "configure"

const (
	// DefaultClockSkew is how far in the future a transaction timestamp may be.
	DefaultClockSkew = 5 * time.Minute

	// DefaultPoolLimit is the per register mempool capacity.
	DefaultPoolLimit = 2000

	// DefaultCallTimeout bounds a single call to an out of process collaborator.
	DefaultCallTimeout = 5 * time.Second

	// DefaultRetryAttempts and DefaultRetryBackoff define the retry policy for
	// idempotent collaborator reads.
	DefaultRetryAttempts = 3
	DefaultRetryBackoff  = 200 * time.Millisecond

	// MaxPayloadSize bounds the encoded payload of a candidate transaction.
	MaxPayloadSize = 256 * 1024
)
