// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"encoding/json"
	"time"

	"github.com/StuartF303/Sorcha-sub006/ledger"
)

// Builder to make it easy to build transaction.
type Builder struct {
	body      body
	digestSet bool
}

// ID set the transaction id.
func (b *Builder) ID(id string) *Builder {
	b.body.ID = id
	return b
}

// RegisterID set the target register.
func (b *Builder) RegisterID(id string) *Builder {
	b.body.RegisterID = id
	return b
}

// BlueprintID set blueprint id.
func (b *Builder) BlueprintID(id string) *Builder {
	b.body.BlueprintID = id
	return b
}

// ActionID set action id.
func (b *Builder) ActionID(id string) *Builder {
	b.body.ActionID = id
	return b
}

// Payload set the payload document.
func (b *Builder) Payload(payload json.RawMessage) *Builder {
	b.body.Payload = append(json.RawMessage(nil), payload...)
	return b
}

// PayloadDigest set the claimed digest. If never called, Build computes it from the payload.
func (b *Builder) PayloadDigest(digest ledger.Bytes32) *Builder {
	b.body.PayloadDigest = digest
	b.digestSet = true
	return b
}

// Signature append a signature.
func (b *Builder) Signature(sig Signature) *Builder {
	b.body.Signatures = append(b.body.Signatures, sig)
	return b
}

// Timestamp set creation time.
func (b *Builder) Timestamp(t time.Time) *Builder {
	b.body.Timestamp = t
	return b
}

// Expiry set expiry time.
func (b *Builder) Expiry(t time.Time) *Builder {
	b.body.Expiry = &t
	return b
}

// Build build tx object.
func (b *Builder) Build() *Transaction {
	tx := Transaction{body: b.body}
	tx.body.Signatures = append([]Signature(nil), b.body.Signatures...)
	if !b.digestSet {
		tx.body.PayloadDigest = DigestPayload(tx.body.Payload)
	}
	return &tx
}
