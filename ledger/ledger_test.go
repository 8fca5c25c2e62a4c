// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytes32JSON(t *testing.T) {
	h := Blake2b([]byte("docket"))

	data, err := json.Marshal(struct{ D Bytes32 }{h})
	require.NoError(t, err)
	assert.Equal(t, `{"D":"`+h.String()+`"}`, string(data))

	var out struct{ D Bytes32 }
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, h, out.D)

	_, err = ParseBytes32("0x1234")
	assert.Error(t, err)
}

func TestBlake2bMulti(t *testing.T) {
	assert.Equal(t, Blake2b([]byte("ab")), Blake2b([]byte("a"), []byte("b")))
	assert.NotEqual(t, Blake2b([]byte("a")), Blake2b([]byte("b")))
}

func TestBytesToBytes32(t *testing.T) {
	b := BytesToBytes32([]byte{1, 2})
	assert.Equal(t, byte(1), b[30])
	assert.Equal(t, byte(2), b[31])
	assert.True(t, Bytes32{}.IsZero())
}

func TestUnavailable(t *testing.T) {
	err := Unavailable("directory", errors.New("dial tcp: refused"))
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, "directory unavailable: dial tcp: refused", err.Error())
	assert.True(t, IsUnavailable(context.DeadlineExceeded))
	assert.False(t, IsUnavailable(ErrNotFound))
	assert.True(t, IsNotFound(ErrNotFound))
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy{Attempts: 3, Backoff: time.Millisecond, Timeout: time.Second}

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Unavailable("ledger", nil)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	permanent := errors.New("bad request")
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	assert.Equal(t, permanent, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = p.Do(context.Background(), func(context.Context) error {
		calls++
		return Unavailable("ledger", nil)
	})
	assert.True(t, IsUnavailable(err))
	assert.Equal(t, 3, calls)
}
