// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consensus

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrRoundInProgress is returned by RunRound while another round of the
// same register is running.
var ErrRoundInProgress = errors.New("round already in progress")

// IsRoundInProgress returns whether err reports a concurrent round.
func IsRoundInProgress(err error) bool {
	return errors.Is(err, ErrRoundInProgress)
}

type invalidDocketError struct {
	msg string
}

func (e invalidDocketError) Error() string {
	return "invalid docket: " + e.msg
}

func invalidDocket(format string, args ...any) error {
	return invalidDocketError{fmt.Sprintf(format, args...)}
}

// IsInvalidDocket returns whether err reports a docket that failed re-validation.
func IsInvalidDocket(err error) bool {
	return errors.As(err, &invalidDocketError{})
}
