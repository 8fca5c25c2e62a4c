// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package comm carries dockets, votes and heartbeats between validators.
package comm

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/log"
	"github.com/StuartF303/Sorcha-sub006/metrics"
)

var (
	logger          = log.WithContext("pkg", "comm")
	metricPeerCalls = metrics.LazyLoadCounterVec("peer_call_count", []string{"op", "outcome"})
)

// ErrVoteWithheld is returned when a peer disagrees with a proposed docket.
var ErrVoteWithheld = errors.New("vote withheld")

// IsVoteWithheld returns whether err reports a peer refusing to vote.
func IsVoteWithheld(err error) bool {
	return errors.Is(err, ErrVoteWithheld)
}

// Heartbeat announces liveness of a validator for a register.
type Heartbeat struct {
	RegisterID  string    `json:"registerId"`
	ValidatorID string    `json:"validatorId"`
	Round       uint64    `json:"round"`
	Timestamp   time.Time `json:"timestamp"`
}

// Network is the peer network capability. All calls are best effort network
// I/O and may fail.
type Network interface {
	directory.Source

	// RequestVote publishes a proposed docket to one peer and returns its vote.
	RequestVote(ctx context.Context, peer directory.ValidatorInfo, d *docket.Docket) (docket.Vote, error)
	// BroadcastConfirmedDocket sends a confirmed docket to every peer.
	BroadcastConfirmedDocket(ctx context.Context, peers []directory.ValidatorInfo, d *docket.Docket) error
	// Heartbeat sends a liveness announcement to one peer.
	Heartbeat(ctx context.Context, peer directory.ValidatorInfo, hb Heartbeat) error
}

// Handler is the receiving side of a Network, served by every validator.
type Handler interface {
	HandleProposal(ctx context.Context, registerID string, d *docket.Docket) (docket.Vote, error)
	HandleConfirmed(ctx context.Context, registerID string, d *docket.Docket) error
	HandleHeartbeat(ctx context.Context, hb Heartbeat) error
}

func observe(op string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case IsVoteWithheld(err):
		outcome = "withheld"
	default:
		outcome = "error"
	}
	metricPeerCalls().AddWithLabel(1, map[string]string{"op": op, "outcome": outcome})
}

// broadcast runs send for every peer and returns the first error after all
// peers were tried.
func broadcast(ctx context.Context, peers []directory.ValidatorInfo, send func(ctx context.Context, peer directory.ValidatorInfo) error) error {
	var first error
	for _, peer := range peers {
		if err := send(ctx, peer); err != nil {
			logger.Debug("broadcast to peer failed", "peer", peer.ID, "err", err)
			if first == nil {
				first = errors.Wrapf(err, "peer %s", peer.ID)
			}
		}
	}
	return first
}
