// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consensus

import "github.com/StuartF303/Sorcha-sub006/docket"

// State of the round state machine.
type State string

const (
	StateIdle            State = "idle"
	StateProposing       State = "proposing"
	StateCollectingVotes State = "collecting-votes"
	StateConfirmed       State = "confirmed"
	StateDiscarded       State = "discarded"
)

// Status is the outcome of a round.
type Status string

const (
	StatusNoTransactions Status = "no-transactions"
	StatusConfirmed      Status = "confirmed"
	StatusDiscarded      Status = "discarded"
	StatusNotLeader      Status = "not-leader"
	StatusLeaderTimeout  Status = "leader-timeout" // silent leader skipped
)

// Result of RunRound.
type Result struct {
	Status Status         `json:"status"`
	Round  uint64         `json:"round"`
	Leader string         `json:"leader,omitempty"`
	Docket *docket.Docket `json:"docket,omitempty"`
	Votes  int            `json:"votes,omitempty"`
	Quorum int            `json:"quorum,omitempty"`
	Reason string         `json:"reason,omitempty"`
}
