// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package blueprint

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Registry is an in-memory Service.
type Registry struct {
	mu         sync.RWMutex
	blueprints map[string]*Blueprint
	schemas    *schemas
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		blueprints: make(map[string]*Blueprint),
		schemas:    newSchemas(),
	}
}

// Put adds or replaces a blueprint. Action ids must be unique and every
// action schema must compile.
func (r *Registry) Put(bp *Blueprint) error {
	if bp.ID == "" {
		return errors.New("blueprint id required")
	}
	seen := make(map[string]bool, len(bp.Actions))
	for _, a := range bp.Actions {
		if a.ID == "" {
			return errors.Errorf("blueprint %s: action id required", bp.ID)
		}
		if seen[a.ID] {
			return errors.Errorf("blueprint %s: duplicate action %s", bp.ID, a.ID)
		}
		seen[a.ID] = true
		if len(a.Schema) > 0 {
			if _, err := r.schemas.compile(a.Schema); err != nil {
				return errors.Wrapf(err, "blueprint %s: action %s schema", bp.ID, a.ID)
			}
		}
	}

	cpy := *bp
	cpy.Actions = slices.Clone(bp.Actions)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.blueprints[bp.ID] = &cpy
	return nil
}

// Remove deletes a blueprint.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blueprints, id)
}

// List returns all blueprints ordered by id.
func (r *Registry) List() []*Blueprint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]*Blueprint, 0, len(r.blueprints))
	for _, bp := range r.blueprints {
		list = append(list, bp)
	}
	slices.SortFunc(list, func(a, b *Blueprint) int { return strings.Compare(a.ID, b.ID) })
	return list
}

// GetBlueprint implements Service.
func (r *Registry) GetBlueprint(_ context.Context, id string) (*Blueprint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bp, ok := r.blueprints[id]
	if !ok {
		return nil, errors.Wrap(ErrBlueprintNotFound, id)
	}
	return bp, nil
}

// ValidatePayload implements Service.
func (r *Registry) ValidatePayload(ctx context.Context, blueprintID, actionID string, payload json.RawMessage) error {
	bp, err := r.GetBlueprint(ctx, blueprintID)
	if err != nil {
		return err
	}
	return r.schemas.validate(bp, actionID, payload)
}
