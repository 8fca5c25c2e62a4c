// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package blueprint provides the blueprint lookup and payload schema capability.
package blueprint

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

var (
	ErrBlueprintNotFound = errors.New("blueprint not found")
	ErrActionNotFound    = errors.New("action not found")
)

// PayloadError reports a payload that does not conform to the action schema.
// Path is the JSON pointer of the failing value, empty for the document itself.
type PayloadError struct {
	Path   string
	Reason string
}

func (e *PayloadError) Error() string {
	if e.Path == "" {
		return "invalid payload: " + e.Reason
	}
	return "invalid payload at " + e.Path + ": " + e.Reason
}

// IsPayloadError returns whether err is a *PayloadError.
func IsPayloadError(err error) bool {
	var pe *PayloadError
	return errors.As(err, &pe)
}

// Action is a step of a blueprint. Schema is an optional JSON schema for the payload.
type Action struct {
	ID     string          `json:"id"`
	Title  string          `json:"title,omitempty"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// Blueprint is a workflow definition transactions refer to.
type Blueprint struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	Version int      `json:"version"`
	Actions []Action `json:"actions"`
}

// Action returns the action with the given id.
func (b *Blueprint) Action(id string) (*Action, bool) {
	for i := range b.Actions {
		if b.Actions[i].ID == id {
			return &b.Actions[i], true
		}
	}
	return nil, false
}

// Service is the blueprint capability.
// Lookup failures caused by transport are reported with ledger.Unavailable.
type Service interface {
	GetBlueprint(ctx context.Context, id string) (*Blueprint, error)
	ValidatePayload(ctx context.Context, blueprintID, actionID string, payload json.RawMessage) error
}
