// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package election

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StuartF303/Sorcha-sub006/directory"
)

func validators(ids ...string) []directory.ValidatorInfo {
	list := make([]directory.ValidatorInfo, 0, len(ids))
	for _, id := range ids {
		list = append(list, directory.ValidatorInfo{ID: id, Weight: 1, Active: true})
	}
	return list
}

func TestNew(t *testing.T) {
	e, err := New(Rotating)
	require.NoError(t, err)
	assert.Equal(t, Rotating, e.Mechanism())

	e, err = New(StakeWeighted)
	require.NoError(t, err)
	assert.Equal(t, StakeWeighted, e.Mechanism())

	_, err = New("vrf")
	assert.ErrorIs(t, err, ErrUnknownMechanism)
}

func TestRotating(t *testing.T) {
	e, _ := New(Rotating)
	set := validators("c", "a", "b")

	var leaders []string
	for round := range uint64(6) {
		l, err := e.Leader(round, set)
		require.NoError(t, err)
		leaders = append(leaders, l.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, leaders)

	// inactive members are skipped
	set[1].Active = false
	l, err := e.Leader(0, set)
	require.NoError(t, err)
	assert.Equal(t, "b", l.ID)

	_, err = e.Leader(0, nil)
	assert.ErrorIs(t, err, ErrNoValidators)
}

func TestSingleValidatorAlwaysLeads(t *testing.T) {
	for _, m := range []Mechanism{Rotating, StakeWeighted} {
		e, _ := New(m)
		for round := range uint64(20) {
			ok, err := IsLeader(e, round, validators("solo"), "solo")
			require.NoError(t, err)
			assert.True(t, ok)
		}
	}
}

func TestExactlyOneLeaderAndOrderIndependent(t *testing.T) {
	for _, m := range []Mechanism{Rotating, StakeWeighted} {
		e, _ := New(m)
		a := validators("v1", "v2", "v3", "v4")
		b := validators("v4", "v2", "v1", "v3")
		for round := range uint64(50) {
			la, err := e.Leader(round, a)
			require.NoError(t, err)
			lb, err := e.Leader(round, b)
			require.NoError(t, err)
			assert.Equal(t, la.ID, lb.ID)

			leaders := 0
			for _, v := range a {
				if ok, _ := IsLeader(e, round, a, v.ID); ok {
					leaders++
				}
			}
			assert.Equal(t, 1, leaders)
		}
	}
}

func TestStakeWeighted(t *testing.T) {
	e, _ := New(StakeWeighted)
	set := validators("heavy", "light", "none")
	set[1].Weight = 0.1
	set[2].Weight = 0

	counts := map[string]int{}
	for round := range uint64(2000) {
		l, err := e.Leader(round, set)
		require.NoError(t, err)
		counts[l.ID]++
	}
	assert.Zero(t, counts["none"])
	assert.Greater(t, counts["heavy"], counts["light"]*5)
	assert.Positive(t, counts["light"])

	// all zero weights fall back to rotation
	zero := validators("a", "b")
	zero[0].Weight, zero[1].Weight = 0, 0
	l, err := e.Leader(1, zero)
	require.NoError(t, err)
	assert.Equal(t, "b", l.ID)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestTracker(t *testing.T) {
	c := &fakeClock{now: time.Unix(1000, 0)}
	tr := NewTracker(c.Now)

	assert.False(t, tr.Expired("leader", 30*time.Second))
	c.Advance(31 * time.Second)
	assert.True(t, tr.Expired("leader", 30*time.Second))
	assert.False(t, tr.Expired("leader", 0))

	tr.Touch("leader")
	assert.False(t, tr.Expired("leader", 30*time.Second))
	seen, ok := tr.LastSeen("leader")
	assert.True(t, ok)
	assert.Equal(t, c.Now(), seen)

	c.Advance(20 * time.Second)
	tr.StartRound(1)
	c.Advance(20 * time.Second)
	// repeated start does not reset the clock
	tr.StartRound(1)
	assert.False(t, tr.Expired("other", 30*time.Second))
	c.Advance(11 * time.Second)
	assert.True(t, tr.Expired("other", 30*time.Second))
}
