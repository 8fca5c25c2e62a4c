// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package blueprint

import (
	"context"
	"encoding/json"

	"github.com/StuartF303/Sorcha-sub006/cache"
)

// Cached decorates a Service with an LRU of fetched blueprints.
// Absent blueprints and failed lookups are not cached.
type Cached struct {
	inner      Service
	blueprints *cache.LRU[string, *Blueprint]
	schemas    *schemas
}

// NewCached creates the decorator holding at most size blueprints.
func NewCached(inner Service, size int) (*Cached, error) {
	blueprints, err := cache.NewLRU[string, *Blueprint](size)
	if err != nil {
		return nil, err
	}
	return &Cached{inner: inner, blueprints: blueprints, schemas: newSchemas()}, nil
}

// Invalidate drops the cached copy of a blueprint.
func (c *Cached) Invalidate(id string) {
	c.blueprints.Remove(id)
}

// GetBlueprint implements Service.
func (c *Cached) GetBlueprint(ctx context.Context, id string) (*Blueprint, error) {
	bp, err := c.blueprints.GetOrLoad(id, func(id string) (*Blueprint, error) {
		return c.inner.GetBlueprint(ctx, id)
	})
	if changed, hit, miss := c.blueprints.Stats().Stats(); changed {
		logger.Debug("blueprint cache stats", "hit", hit, "miss", miss)
	}
	return bp, err
}

// ValidatePayload implements Service.
func (c *Cached) ValidatePayload(ctx context.Context, blueprintID, actionID string, payload json.RawMessage) error {
	bp, err := c.GetBlueprint(ctx, blueprintID)
	if err != nil {
		return err
	}
	return c.schemas.validate(bp, actionID, payload)
}
