// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotFound reports that a collaborator answered and the requested record does not exist.
var ErrNotFound = errors.New("not found")

// IsNotFound returns whether err reports an absent record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// unavailableError is a transient collaborator failure. Callers may retry.
type unavailableError struct {
	service string
	cause   error
}

func (e *unavailableError) Error() string {
	if e.cause == nil {
		return e.service + " unavailable"
	}
	return e.service + " unavailable: " + e.cause.Error()
}

func (e *unavailableError) Unwrap() error { return e.cause }

// Unavailable wraps cause as a transient failure of the named service.
func Unavailable(service string, cause error) error {
	return &unavailableError{service, cause}
}

// IsUnavailable returns whether err is a transient collaborator failure.
// Context deadline and cancellation count as transient.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var ue *unavailableError
	if errors.As(err, &ue) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
