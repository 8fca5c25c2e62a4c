// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Violation is one invalid field of a control record.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ConfigError reports a malformed genesis control record. It is fatal to
// starting the register until the record is corrected.
type ConfigError struct {
	RegisterID string      `json:"registerId"`
	Violations []Violation `json:"violations"`
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	prefix := "invalid genesis config"
	if e.RegisterID != "" {
		prefix += " for register " + e.RegisterID
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// IsConfigError returns whether err reports a malformed genesis control record.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

type violations []Violation

func (v *violations) add(field, format string, args ...any) {
	*v = append(*v, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (v *violations) positive(field string, d Duration) {
	if time.Duration(d) <= 0 {
		v.add(field, "must be a positive duration")
	}
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return &ConfigError{Violations: v}
}
