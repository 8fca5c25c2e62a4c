// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consensus

import (
	"sync"
	"time"

	"github.com/StuartF303/Sorcha-sub006/ledger"
)

type lockedVote struct {
	round  uint64
	digest ledger.Bytes32
	at     time.Time
}

// voteLock remembers the docket digest the local validator signed for each
// docket number. A second, different digest at the same number is refused
// until the earlier vote is older than the hold period, after which its
// proposer has stopped collecting.
type voteLock struct {
	mu    sync.Mutex
	votes map[uint64]lockedVote
}

func newVoteLock() *voteLock {
	return &voteLock{votes: make(map[uint64]lockedVote)}
}

// acquire records digest for number. It returns the conflicting vote and
// false when another digest is held.
func (l *voteLock) acquire(number, round uint64, digest ledger.Bytes32, now time.Time, hold time.Duration) (lockedVote, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.votes[number]; ok && held.digest != digest && now.Sub(held.at) < hold {
		return held, false
	}
	l.votes[number] = lockedVote{round: round, digest: digest, at: now}
	return lockedVote{}, true
}

// drop forgets the vote for number if it is for digest.
func (l *voteLock) drop(number uint64, digest ledger.Bytes32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if held, ok := l.votes[number]; ok && held.digest == digest {
		delete(l.votes, number)
	}
}

// release drops the votes for numbers up to and including number.
func (l *voteLock) release(number uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for n := range l.votes {
		if n <= number {
			delete(l.votes, n)
		}
	}
}
