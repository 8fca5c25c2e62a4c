// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chain persists confirmed dockets per register.
package chain

import (
	"context"

	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/ledger"
)

var (
	// ErrConflict reports a write for a docket number that is already taken.
	ErrConflict = errors.New("docket number already written")
	// ErrDuplicateTx reports a docket including a transaction already committed.
	ErrDuplicateTx = errors.New("transaction already committed")
)

// Ledger is the persistence capability for confirmed dockets.
// Absent dockets are reported with an error satisfying IsNotFound.
type Ledger interface {
	ReadDocket(ctx context.Context, registerID string, number uint64) (*docket.Docket, error)
	ReadLatestDocket(ctx context.Context, registerID string) (*docket.Docket, error)
	WriteDocket(ctx context.Context, d *docket.Docket) error
	// HasTransaction reports whether a confirmed docket of the register includes the transaction.
	HasTransaction(ctx context.Context, registerID, txID string) (bool, error)
}

// IsNotFound returns whether err reports an absent docket.
func IsNotFound(err error) bool {
	return ledger.IsNotFound(err)
}

// IsConflict returns whether err reports a docket number already written.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsDuplicateTx returns whether err reports an already committed transaction.
func IsDuplicateTx(err error) bool {
	return errors.Is(err, ErrDuplicateTx)
}
