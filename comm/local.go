// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package comm

import (
	"context"
	"slices"
	"sync"

	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/ledger"
)

// ErrUnreachable is returned for calls to a peer that is not connected.
var ErrUnreachable = errors.New("peer unreachable")

// LocalNetwork connects validators living in one process.
type LocalNetwork struct {
	mu           sync.RWMutex
	members      map[string][]directory.ValidatorInfo // register id => listing
	handlers     map[string]Handler                   // validator id => handler
	disconnected map[string]bool
	directoryErr error
}

// NewLocalNetwork creates an empty network.
func NewLocalNetwork() *LocalNetwork {
	return &LocalNetwork{
		members:      make(map[string][]directory.ValidatorInfo),
		handlers:     make(map[string]Handler),
		disconnected: make(map[string]bool),
	}
}

// Join lists info in the directory of registerID. A nil handler lists the
// validator without serving requests for it.
func (n *LocalNetwork) Join(registerID string, info directory.ValidatorInfo, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	list := n.members[registerID]
	i := slices.IndexFunc(list, func(v directory.ValidatorInfo) bool { return v.ID == info.ID })
	if i >= 0 {
		list[i] = info
	} else {
		list = append(list, info)
	}
	n.members[registerID] = list
	if h != nil {
		n.handlers[info.ID] = h
	}
}

// Serve sets the handler of an already listed validator.
func (n *LocalNetwork) Serve(validatorID string, h Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[validatorID] = h
}

// SetConnected toggles reachability of a validator.
func (n *LocalNetwork) SetConnected(validatorID string, connected bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnected[validatorID] = !connected
}

// FailDirectory makes QueryValidators return err until called with nil.
func (n *LocalNetwork) FailDirectory(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.directoryErr = err
}

func (n *LocalNetwork) handler(id string) (Handler, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	h, ok := n.handlers[id]
	if !ok || n.disconnected[id] {
		return nil, errors.Wrap(ErrUnreachable, id)
	}
	return h, nil
}

// QueryValidators implements directory.Source.
func (n *LocalNetwork) QueryValidators(ctx context.Context, registerID string) ([]directory.ValidatorInfo, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.directoryErr != nil {
		return nil, ledger.Unavailable("peer directory", n.directoryErr)
	}
	return append([]directory.ValidatorInfo(nil), n.members[registerID]...), nil
}

// RequestVote implements Network.
func (n *LocalNetwork) RequestVote(ctx context.Context, peer directory.ValidatorInfo, d *docket.Docket) (docket.Vote, error) {
	h, err := n.handler(peer.ID)
	if err != nil {
		return docket.Vote{}, err
	}
	type result struct {
		vote docket.Vote
		err  error
	}
	done := make(chan result, 1)
	go func() {
		v, err := h.HandleProposal(ctx, d.Header.RegisterID, d.Copy())
		done <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		return docket.Vote{}, ctx.Err()
	case r := <-done:
		if r.err != nil && !ledger.IsUnavailable(r.err) {
			r.err = errors.Wrap(ErrVoteWithheld, r.err.Error())
		}
		observe("vote", r.err)
		return r.vote, r.err
	}
}

// BroadcastConfirmedDocket implements Network.
func (n *LocalNetwork) BroadcastConfirmedDocket(ctx context.Context, peers []directory.ValidatorInfo, d *docket.Docket) error {
	return broadcast(ctx, peers, func(ctx context.Context, peer directory.ValidatorInfo) error {
		h, err := n.handler(peer.ID)
		if err != nil {
			return err
		}
		return h.HandleConfirmed(ctx, d.Header.RegisterID, d.Copy())
	})
}

// Heartbeat implements Network.
func (n *LocalNetwork) Heartbeat(ctx context.Context, peer directory.ValidatorInfo, hb Heartbeat) error {
	h, err := n.handler(peer.ID)
	if err != nil {
		return err
	}
	return h.HandleHeartbeat(ctx, hb)
}
