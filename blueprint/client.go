// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package blueprint

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/httpclient"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/log"
)

var logger = log.WithContext("pkg", "blueprint")

// Client fetches blueprints from a remote blueprint service at
// GET {url}/blueprints/{id} and validates payloads locally.
type Client struct {
	http    *httpclient.Client
	policy  ledger.RetryPolicy
	schemas *schemas
}

// NewClient creates a client. Each lookup is retried according to policy.
func NewClient(serviceURL string, policy ledger.RetryPolicy) *Client {
	return &Client{
		http:    httpclient.New(serviceURL),
		policy:  policy,
		schemas: newSchemas(),
	}
}

// GetBlueprint implements Service.
func (c *Client) GetBlueprint(ctx context.Context, id string) (*Blueprint, error) {
	var bp Blueprint
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		err := c.http.Get(ctx, "/blueprints/"+url.PathEscape(id), &bp)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, httpclient.ErrNotFound):
			return errors.Wrap(ErrBlueprintNotFound, id)
		default:
			logger.Debug("blueprint lookup failed", "id", id, "err", err)
			return ledger.Unavailable("blueprint service", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return &bp, nil
}

// ValidatePayload implements Service.
func (c *Client) ValidatePayload(ctx context.Context, blueprintID, actionID string, payload json.RawMessage) error {
	bp, err := c.GetBlueprint(ctx, blueprintID)
	if err != nil {
		return err
	}
	return c.schemas.validate(bp, actionID, payload)
}
