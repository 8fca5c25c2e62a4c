// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminalHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	var lvl slog.LevelVar
	lvl.Set(LevelInfo)

	l := NewLogger(NewTerminalHandlerWithLevel(&buf, &lvl, false))
	l.Debug("hidden")
	l.Info("round done", "register", "r1", "round", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "INFO "))
	assert.Contains(t, out, "round done register=r1 round=3")
}

func TestJSONHandlerRendersErrorsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(JSONHandler(&buf))
	l.Warn("call failed", "err", errors.New("boom"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "warn", rec["lvl"])
	assert.Equal(t, "boom", rec["err"])
	assert.Equal(t, "call failed", rec["msg"])
}

func TestWithContextFollowsRoot(t *testing.T) {
	pkgLogger := WithContext("pkg", "test")

	old := Root()
	defer SetDefault(old)

	var buf bytes.Buffer
	SetDefault(NewLogger(JSONHandler(&buf)))
	pkgLogger.Info("hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "test", rec["pkg"])
	assert.Equal(t, "v", rec["k"])
}

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"trace", "debug", "info", "warn", "error", "crit"} {
		lvl, ok := ParseLevel(name)
		assert.True(t, ok)
		assert.Equal(t, name, LevelString(lvl))
	}
	_, ok := ParseLevel("loud")
	assert.False(t, ok)
	assert.Equal(t, LevelInfo, FromLegacyLevel(3))
}
