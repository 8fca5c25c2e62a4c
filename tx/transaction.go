// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/StuartF303/Sorcha-sub006/ledger"
)

// Transaction is an immutable candidate transaction awaiting commitment.
type Transaction struct {
	body body
}

// body describes details of a tx.
type body struct {
	ID            string
	RegisterID    string
	BlueprintID   string
	ActionID      string
	Payload       json.RawMessage
	PayloadDigest ledger.Bytes32
	Signatures    []Signature
	Timestamp     time.Time
	Expiry        *time.Time
}

// ID returns the caller supplied transaction id.
func (t *Transaction) ID() string { return t.body.ID }

// RegisterID returns the register the transaction is submitted to.
func (t *Transaction) RegisterID() string { return t.body.RegisterID }

// BlueprintID returns the blueprint the action belongs to.
func (t *Transaction) BlueprintID() string { return t.body.BlueprintID }

// ActionID returns the blueprint action id.
func (t *Transaction) ActionID() string { return t.body.ActionID }

// Payload returns a copy of the payload document.
func (t *Transaction) Payload() json.RawMessage {
	return append(json.RawMessage(nil), t.body.Payload...)
}

// PayloadDigest returns the digest claimed by the submitter.
func (t *Transaction) PayloadDigest() ledger.Bytes32 { return t.body.PayloadDigest }

// Signatures returns a copy of the signatures.
func (t *Transaction) Signatures() []Signature {
	return append([]Signature(nil), t.body.Signatures...)
}

// Timestamp returns the creation time.
func (t *Transaction) Timestamp() time.Time { return t.body.Timestamp }

// Expiry returns the expiry time, or nil if the transaction never expires.
func (t *Transaction) Expiry() *time.Time {
	if t.body.Expiry == nil {
		return nil
	}
	cpy := *t.body.Expiry
	return &cpy
}

// IsExpired returns whether the transaction expired at the given time.
func (t *Transaction) IsExpired(now time.Time) bool {
	return t.body.Expiry != nil && !now.Before(*t.body.Expiry)
}

// WithSignature creates a new transaction with sig appended.
func (t *Transaction) WithSignature(sig Signature) *Transaction {
	newTx := Transaction{body: t.body}
	newTx.body.Signatures = append(append([]Signature(nil), t.body.Signatures...), sig)
	return &newTx
}

// WithPayload creates a new transaction with the payload replaced and the claimed digest kept.
func (t *Transaction) WithPayload(payload json.RawMessage) *Transaction {
	newTx := Transaction{body: t.body}
	newTx.body.Payload = append(json.RawMessage(nil), payload...)
	return &newTx
}

// ComputedDigest recomputes the payload digest.
func (t *Transaction) ComputedDigest() ledger.Bytes32 {
	return DigestPayload(t.body.Payload)
}

// DigestPayload computes the blake2b-256 digest of the compact JSON form of
// payload, so the digest is stable across re-encoding. Payloads that are not
// valid JSON are hashed as is.
func DigestPayload(payload json.RawMessage) ledger.Bytes32 {
	var buf bytes.Buffer
	if err := json.Compact(&buf, payload); err != nil {
		return ledger.Blake2b(payload)
	}
	return ledger.Blake2b(buf.Bytes())
}

// Transactions a slice of transactions.
type Transactions []*Transaction

// IDs returns the ids in order.
func (txs Transactions) IDs() []string {
	ids := make([]string, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ID())
	}
	return ids
}

// Digests returns the payload digests in order.
func (txs Transactions) Digests() []ledger.Bytes32 {
	digests := make([]ledger.Bytes32, 0, len(txs))
	for _, t := range txs {
		digests = append(digests, t.PayloadDigest())
	}
	return digests
}

type jsonTransaction struct {
	ID            string          `json:"id"`
	RegisterID    string          `json:"registerId"`
	BlueprintID   string          `json:"blueprintId"`
	ActionID      string          `json:"actionId"`
	Payload       json.RawMessage `json:"payload"`
	PayloadDigest ledger.Bytes32  `json:"payloadDigest"`
	Signatures    []Signature     `json:"signatures"`
	Timestamp     time.Time       `json:"timestamp"`
	Expiry        *time.Time      `json:"expiry,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	sigs := t.body.Signatures
	if sigs == nil {
		sigs = []Signature{}
	}
	return json.Marshal(&jsonTransaction{
		ID:            t.body.ID,
		RegisterID:    t.body.RegisterID,
		BlueprintID:   t.body.BlueprintID,
		ActionID:      t.body.ActionID,
		Payload:       t.body.Payload,
		PayloadDigest: t.body.PayloadDigest,
		Signatures:    sigs,
		Timestamp:     t.body.Timestamp,
		Expiry:        t.body.Expiry,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var jt jsonTransaction
	if err := json.Unmarshal(data, &jt); err != nil {
		return err
	}
	t.body = body{
		ID:            jt.ID,
		RegisterID:    jt.RegisterID,
		BlueprintID:   jt.BlueprintID,
		ActionID:      jt.ActionID,
		Payload:       jt.Payload,
		PayloadDigest: jt.PayloadDigest,
		Signatures:    jt.Signatures,
		Timestamp:     jt.Timestamp,
		Expiry:        jt.Expiry,
	}
	return nil
}
