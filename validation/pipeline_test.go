// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package validation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StuartF303/Sorcha-sub006/blueprint"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/test/datagen"
	"github.com/StuartF303/Sorcha-sub006/tx"
)

type downService struct{}

func (downService) GetBlueprint(context.Context, string) (*blueprint.Blueprint, error) {
	return nil, ledger.Unavailable("blueprint service", errors.New("connection refused"))
}

func (downService) ValidatePayload(context.Context, string, string, json.RawMessage) error {
	return ledger.Unavailable("blueprint service", errors.New("connection refused"))
}

func newPipeline(f *datagen.TxFactory) *Pipeline {
	return New(f.Keyring(), f.Registry(), Options{RegisterID: "reg"})
}

func TestValidateAccepts(t *testing.T) {
	f := datagen.NewTxFactory()
	res, err := newPipeline(f).Validate(context.Background(), f.New("reg"))
	require.NoError(t, err)
	assert.True(t, res.Accepted(), res.Reason)
}

func TestValidateRejects(t *testing.T) {
	f := datagen.NewTxFactory()
	p := newPipeline(f)
	now := time.Now()

	flipSig := func(trx *tx.Transaction) *tx.Transaction {
		sig := trx.Signatures()[0]
		sig.Signature = append([]byte(nil), sig.Signature...)
		sig.Signature[10] ^= 0x01
		b := f.Builder("reg").ID(trx.ID()).Payload(trx.Payload()).Signature(sig)
		return b.Build()
	}

	tests := []struct {
		name   string
		trx    *tx.Transaction
		status tx.Status
	}{
		{"missing id", f.Sign(f.Builder("reg").ID("").Build()), tx.StatusInvalidStructure},
		{"missing register", f.Sign(f.Builder("").Build()), tx.StatusInvalidStructure},
		{"missing blueprint", f.Sign(f.Builder("reg").BlueprintID("").Build()), tx.StatusInvalidStructure},
		{"missing action", f.Sign(f.Builder("reg").ActionID("").Build()), tx.StatusInvalidStructure},
		{"zero digest", f.Sign(f.Builder("reg").PayloadDigest(ledger.Bytes32{}).Build()), tx.StatusInvalidStructure},
		{"wrong register", f.New("other"), tx.StatusWrongRegister},
		{"future timestamp", f.Sign(f.Builder("reg").Timestamp(now.Add(time.Hour)).Build()), tx.StatusInvalidTimestamp},
		{"expired", f.Sign(f.Builder("reg").Expiry(now.Add(-time.Second)).Build()), tx.StatusExpired},
		{"tampered payload", f.New("reg").WithPayload(json.RawMessage(`{"amount": 999}`)), tx.StatusInvalidDigest},
		{"wrong digest", f.Sign(f.Builder("reg").PayloadDigest(datagen.RandomHash()).Build()), tx.StatusInvalidDigest},
		{"no signature", f.Builder("reg").Build(), tx.StatusMissingSignature},
		{"corrupted signature", flipSig(f.New("reg")), tx.StatusInvalidSignature},
		{"unsupported algorithm", f.Builder("reg").Signature(tx.Signature{Algorithm: "rsa"}).Build(), tx.StatusVersionNotSupported},
		{"unknown blueprint", f.Sign(f.Builder("reg").BlueprintID("missing").Build()), tx.StatusUnknownBlueprint},
		{"unknown action", f.Sign(f.Builder("reg").ActionID("delete").Build()), tx.StatusUnknownAction},
		{"invalid payload", f.Sign(f.Builder("reg").Payload(json.RawMessage(`{"amount": -1}`)).Build()), tx.StatusInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Validate(context.Background(), tt.trx)
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status, res.Reason)
			assert.False(t, res.Accepted())
		})
	}
}

func TestValidateSignatureAllOrNothing(t *testing.T) {
	f := datagen.NewTxFactory()
	good := f.New("reg")
	bad := good.WithSignature(tx.Signature{
		PublicKey: good.Signatures()[0].PublicKey,
		Signature: make([]byte, 65),
		Algorithm: tx.AlgSecp256k1,
	})

	res, err := newPipeline(f).Validate(context.Background(), bad)
	require.NoError(t, err)
	assert.Equal(t, tx.StatusInvalidSignature, res.Status)
}

func TestValidateClockSkew(t *testing.T) {
	f := datagen.NewTxFactory()
	now := time.Now()
	p := New(f.Keyring(), f.Registry(), Options{ClockSkew: time.Minute, Now: func() time.Time { return now }})

	res, err := p.Validate(context.Background(), f.Sign(f.Builder("reg").Timestamp(now.Add(30*time.Second)).Build()))
	require.NoError(t, err)
	assert.True(t, res.Accepted())

	res, err = p.Validate(context.Background(), f.Sign(f.Builder("reg").Timestamp(now.Add(2*time.Minute)).Build()))
	require.NoError(t, err)
	assert.Equal(t, tx.StatusInvalidTimestamp, res.Status)
}

func TestValidateFreeFormAction(t *testing.T) {
	f := datagen.NewTxFactory()
	trx := f.Sign(f.Builder("reg").ActionID(datagen.ActionNote).Payload(json.RawMessage(`["anything"]`)).Build())

	res, err := newPipeline(f).Validate(context.Background(), trx)
	require.NoError(t, err)
	assert.True(t, res.Accepted())
}

func TestValidateBlueprintUnavailable(t *testing.T) {
	f := datagen.NewTxFactory()
	p := New(f.Keyring(), downService{}, Options{})

	res, err := p.Validate(context.Background(), f.New("reg"))
	assert.True(t, ledger.IsUnavailable(err))
	assert.Equal(t, tx.Status(""), res.Status)
	assert.False(t, res.Accepted())
}

func TestValidatePayloadReason(t *testing.T) {
	f := datagen.NewTxFactory()
	p := newPipeline(f)

	res, err := p.Validate(context.Background(), f.Sign(f.Builder("reg").Payload(json.RawMessage(`{"amount": -1}`)).Build()))
	require.NoError(t, err)
	assert.Equal(t, tx.StatusInvalidPayload, res.Status)
	assert.Equal(t, "payload does not conform to the action schema at /amount", res.Reason)

	res, err = p.Validate(context.Background(), f.Sign(f.Builder("reg").Payload(json.RawMessage(`{}`)).Build()))
	require.NoError(t, err)
	assert.Equal(t, tx.StatusInvalidPayload, res.Status)
	assert.Equal(t, "payload does not conform to the action schema", res.Reason)
}
