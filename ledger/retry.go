// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"context"
	"time"
)

// RetryPolicy bounds how collaborator calls are attempted.
type RetryPolicy struct {
	Attempts int           // total attempts, at least 1
	Backoff  time.Duration // delay before the second attempt, doubled afterwards
	Timeout  time.Duration // per attempt timeout
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: DefaultRetryAttempts,
		Backoff:  DefaultRetryBackoff,
		Timeout:  DefaultCallTimeout,
	}
}

// Do runs fn until it succeeds, returns a non transient error, the attempts
// are used up or ctx is done. Each attempt gets its own timeout.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := p.Backoff

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return Unavailable("retry", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		err = p.attempt(ctx, fn)
		if err == nil || !IsUnavailable(err) {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return err
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(ctx)
}
