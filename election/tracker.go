// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package election

import (
	"sync"
	"time"
)

// Tracker records when validators were last heard from, and when the
// current round started, to detect a silent leader.
type Tracker struct {
	mu         sync.Mutex
	lastSeen   map[string]time.Time
	round      uint64
	roundStart time.Time
	now        func() time.Time
}

// NewTracker creates a tracker. now defaults to time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{lastSeen: make(map[string]time.Time), roundStart: now(), now: now}
}

// Touch records activity from a validator: a heartbeat, proposal or vote.
func (t *Tracker) Touch(validatorID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[validatorID] = t.now()
}

// LastSeen returns when the validator was last heard from.
func (t *Tracker) LastSeen(validatorID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts, ok := t.lastSeen[validatorID]
	return ts, ok
}

// StartRound records the start of round. Repeated calls for the same round are ignored.
func (t *Tracker) StartRound(round uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if round == t.round && !t.roundStart.IsZero() {
		return
	}
	t.round = round
	t.roundStart = t.now()
}

// Expired reports whether leaderID has been silent for longer than timeout
// since the later of the round start and its last activity.
func (t *Tracker) Expired(leaderID string, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	since := t.roundStart
	if seen, ok := t.lastSeen[leaderID]; ok && seen.After(since) {
		since = seen
	}
	return t.now().Sub(since) > timeout
}
