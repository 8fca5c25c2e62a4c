// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package blueprint

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/StuartF303/Sorcha-sub006/cache"
	"github.com/StuartF303/Sorcha-sub006/ledger"
)

const schemaCacheSize = 512

// schemas compiles action schemas and caches them by content digest.
type schemas struct {
	compiled *cache.LRU[ledger.Bytes32, *jsonschema.Schema]
}

func newSchemas() *schemas {
	compiled, _ := cache.NewLRU[ledger.Bytes32, *jsonschema.Schema](schemaCacheSize)
	return &schemas{compiled}
}

func (s *schemas) compile(schema json.RawMessage) (*jsonschema.Schema, error) {
	key := ledger.Blake2b(schema)
	return s.compiled.GetOrLoad(key, func(key ledger.Bytes32) (*jsonschema.Schema, error) {
		return jsonschema.CompileString("schema-"+key.String()+".json", string(schema))
	})
}

// validate checks payload against the action of bp.
func (s *schemas) validate(bp *Blueprint, actionID string, payload json.RawMessage) error {
	action, ok := bp.Action(actionID)
	if !ok {
		return errors.Wrapf(ErrActionNotFound, "%s/%s", bp.ID, actionID)
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return &PayloadError{Reason: "malformed document"}
	}
	if len(action.Schema) == 0 {
		return nil
	}

	sch, err := s.compile(action.Schema)
	if err != nil {
		return &PayloadError{Reason: "action schema does not compile"}
	}
	if err := sch.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			for len(ve.Causes) > 0 {
				ve = ve.Causes[0]
			}
			return &PayloadError{Path: ve.InstanceLocation, Reason: ve.Message}
		}
		return &PayloadError{Reason: err.Error()}
	}
	return nil
}
