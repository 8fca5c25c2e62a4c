// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package comm

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/httpclient"
	"github.com/StuartF303/Sorcha-sub006/ledger"
)

// HTTPNetwork talks JSON over HTTP to the peer API of other validators.
// The validator listing comes from a directory service when a URL is given,
// otherwise from the static list.
type HTTPNetwork struct {
	directory *httpclient.Client
	http      *http.Client

	mu      sync.RWMutex
	static  map[string][]directory.ValidatorInfo
	clients map[string]*httpclient.Client
}

// NewHTTPNetwork creates a network. directoryURL may be empty.
func NewHTTPNetwork(directoryURL string, c *http.Client) *HTTPNetwork {
	if c == nil {
		c = &http.Client{Timeout: ledger.DefaultCallTimeout}
	}
	n := &HTTPNetwork{
		http:    c,
		static:  make(map[string][]directory.ValidatorInfo),
		clients: make(map[string]*httpclient.Client),
	}
	if directoryURL != "" {
		n.directory = httpclient.NewWithHTTP(directoryURL, c)
	}
	return n
}

// SetStatic sets the validator listing of a register used without a directory service.
func (n *HTTPNetwork) SetStatic(registerID string, validators []directory.ValidatorInfo) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.static[registerID] = append([]directory.ValidatorInfo(nil), validators...)
}

func (n *HTTPNetwork) client(endpoint string) *httpclient.Client {
	n.mu.RLock()
	c, ok := n.clients[endpoint]
	n.mu.RUnlock()
	if ok {
		return c
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if c, ok = n.clients[endpoint]; !ok {
		c = httpclient.NewWithHTTP(endpoint, n.http)
		n.clients[endpoint] = c
	}
	return c
}

func registerPath(registerID, rest string) string {
	return "/registers/" + url.PathEscape(registerID) + rest
}

// QueryValidators implements directory.Source.
func (n *HTTPNetwork) QueryValidators(ctx context.Context, registerID string) ([]directory.ValidatorInfo, error) {
	if n.directory == nil {
		n.mu.RLock()
		defer n.mu.RUnlock()
		return append([]directory.ValidatorInfo(nil), n.static[registerID]...), nil
	}
	var list []directory.ValidatorInfo
	err := n.directory.Get(ctx, registerPath(registerID, "/validators"), &list)
	observe("query", err)
	if err != nil {
		if errors.Is(err, httpclient.ErrNotFound) {
			return nil, nil
		}
		return nil, ledger.Unavailable("peer directory", err)
	}
	return list, nil
}

// RequestVote implements Network.
func (n *HTTPNetwork) RequestVote(ctx context.Context, peer directory.ValidatorInfo, d *docket.Docket) (docket.Vote, error) {
	var vote docket.Vote
	err := n.client(peer.Endpoint).Post(ctx, registerPath(d.Header.RegisterID, "/proposals"), d, &vote)
	if err != nil && !httpclient.IsServerError(err) {
		err = errors.Wrap(ErrVoteWithheld, err.Error())
	}
	observe("vote", err)
	return vote, err
}

// BroadcastConfirmedDocket implements Network.
func (n *HTTPNetwork) BroadcastConfirmedDocket(ctx context.Context, peers []directory.ValidatorInfo, d *docket.Docket) error {
	return broadcast(ctx, peers, func(ctx context.Context, peer directory.ValidatorInfo) error {
		err := n.client(peer.Endpoint).Post(ctx, registerPath(d.Header.RegisterID, "/dockets"), d, nil)
		observe("confirmed", err)
		return err
	})
}

// Heartbeat implements Network.
func (n *HTTPNetwork) Heartbeat(ctx context.Context, peer directory.ValidatorInfo, hb Heartbeat) error {
	err := n.client(peer.Endpoint).Post(ctx, registerPath(hb.RegisterID, "/heartbeats"), &hb, nil)
	observe("heartbeat", err)
	return err
}
