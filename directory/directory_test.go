// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package directory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/tx"
)

type fakeSource struct {
	mu    sync.Mutex
	list  []ValidatorInfo
	err   error
	calls atomic.Int32
	delay time.Duration
}

func (s *fakeSource) QueryValidators(context.Context, string) ([]ValidatorInfo, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list, s.err
}

func (s *fakeSource) set(list []ValidatorInfo, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list, s.err = list, err
}

func validator(id string, active bool) ValidatorInfo {
	return ValidatorInfo{ID: id, Endpoint: "http://" + id, PublicKey: []byte{1}, Algorithm: tx.AlgEd25519, Weight: 1, Active: active}
}

func registration(id string) Registration {
	return Registration{ValidatorID: id, Endpoint: "http://" + id, PublicKey: []byte{2}, Algorithm: tx.AlgSecp256k1}
}

var noRetry = ledger.RetryPolicy{Attempts: 1, Timeout: time.Second}

func TestListAndCount(t *testing.T) {
	src := &fakeSource{list: []ValidatorInfo{validator("c", true), validator("a", true), validator("b", false)}}
	d := New("reg", src, Policy{MinValidators: 2, MaxValidators: 10, Mode: ModePublic}, noRetry)
	ctx := context.Background()

	list, err := d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(list))

	active, err := d.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(active))

	count, err := d.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, Count{Active: 2, HasQuorum: true}, count)

	d.SetPolicy(Policy{MinValidators: 3, MaxValidators: 10})
	count, err = d.Count(ctx)
	require.NoError(t, err)
	assert.False(t, count.HasQuorum)

	v, ok, err := d.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, v.Active)

	// cached after first load
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestRefreshFailureKeepsCache(t *testing.T) {
	src := &fakeSource{list: []ValidatorInfo{validator("a", true)}}
	d := New("reg", src, Policy{MinValidators: 1}, ledger.RetryPolicy{Attempts: 3, Backoff: time.Millisecond})
	ctx := context.Background()

	require.NoError(t, d.Refresh(ctx))

	src.set(nil, errors.New("connection refused"))
	err := d.Refresh(ctx)
	assert.True(t, ledger.IsUnavailable(err))
	assert.Equal(t, int32(4), src.calls.Load())

	list, err := d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, ids(list))
}

func TestFirstLoadFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("down")}
	d := New("reg", src, Policy{}, noRetry)

	_, err := d.Count(context.Background())
	assert.True(t, ledger.IsUnavailable(err))
}

func TestRefreshSingleflight(t *testing.T) {
	src := &fakeSource{list: []ValidatorInfo{validator("a", true)}, delay: 50 * time.Millisecond}
	d := New("reg", src, Policy{}, noRetry)

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			assert.NoError(t, d.Refresh(context.Background()))
		})
	}
	wg.Wait()
	assert.Less(t, src.calls.Load(), int32(10))
}

func TestRegisterPublic(t *testing.T) {
	src := &fakeSource{list: []ValidatorInfo{validator("a", true)}}
	d := New("reg", src, Policy{MinValidators: 1, MaxValidators: 2, Mode: ModePublic}, noRetry)
	ctx := context.Background()

	res, err := d.Register(ctx, registration("b"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, res.Outcome)

	list, err := d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(list))
	assert.Equal(t, 1.0, list[1].Weight)
	assert.True(t, list[1].Active)

	res, err = d.Register(ctx, registration("a"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)

	res, err = d.Register(ctx, registration("c"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, "validator set is full", res.Reason)

	// local registrations survive a refresh
	require.NoError(t, d.Refresh(ctx))
	count, err := d.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count.Active)
}

func TestRegisterMalformed(t *testing.T) {
	d := New("reg", &fakeSource{}, Policy{MaxValidators: 10}, noRetry)
	ctx := context.Background()

	bad := []Registration{
		{},
		{ValidatorID: "x", PublicKey: []byte{1}, Algorithm: tx.AlgEd25519},
		{ValidatorID: "x", Endpoint: "e", Algorithm: tx.AlgEd25519},
		{ValidatorID: "x", Endpoint: "e", PublicKey: []byte{1}, Algorithm: "rsa"},
		{ValidatorID: "x", Endpoint: "e", PublicKey: []byte{1}, Algorithm: tx.AlgEd25519, Weight: 2},
	}
	for _, r := range bad {
		res, err := d.Register(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRejected, res.Outcome)
	}
}

func TestRegisterConsent(t *testing.T) {
	d := New("reg", &fakeSource{}, Policy{MaxValidators: 10, Mode: ModeConsent}, noRetry)
	ctx := context.Background()

	res, err := d.Register(ctx, registration("b"))
	require.NoError(t, err)
	assert.Equal(t, OutcomePending, res.Outcome)

	res, err = d.Register(ctx, registration("b"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)

	list, err := d.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, []string{"b"}, ids(d.Pending()))

	assert.Equal(t, OutcomeRejected, d.Approve("unknown").Outcome)
	assert.Equal(t, OutcomeAccepted, d.Approve("b").Outcome)
	assert.Empty(t, d.Pending())

	list, err = d.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(list))
}

func TestRegisterUnavailable(t *testing.T) {
	d := New("reg", &fakeSource{err: errors.New("down")}, Policy{MaxValidators: 10}, noRetry)
	_, err := d.Register(context.Background(), registration("b"))
	assert.True(t, ledger.IsUnavailable(err))
}

func ids(list []ValidatorInfo) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		out = append(out, v.ID)
	}
	return out
}

func TestRegisterRequiresStake(t *testing.T) {
	d := New("reg", &fakeSource{}, Policy{MaxValidators: 10, Mode: ModePublic, RequireStake: true, MinStake: 0.5}, noRetry)
	ctx := context.Background()

	low := registration("low")
	low.Weight = 0.2
	res, err := d.Register(ctx, low)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, "stake below minimum", res.Reason)

	enough := registration("enough")
	enough.Weight = 0.5
	res, err = d.Register(ctx, enough)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, res.Outcome)

	// an unset weight counts as full stake
	res, err = d.Register(ctx, registration("full"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, res.Outcome)

	d.SetPolicy(Policy{MaxValidators: 10, Mode: ModePublic, MinStake: 0.5})
	other := registration("other")
	other.Weight = 0.2
	res, err = d.Register(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, res.Outcome, "stake not required")
}
