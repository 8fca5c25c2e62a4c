// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validator

import "github.com/pkg/errors"

// ErrNotStarted is returned for operations on a register without a running instance.
var ErrNotStarted = errors.New("validator not started for register")

// IsNotStarted returns whether err reports a register that is not started.
func IsNotStarted(err error) bool {
	return errors.Is(err, ErrNotStarted)
}
