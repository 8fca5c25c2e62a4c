// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package docket defines the sealed batch of transactions forming one link of
// a register's chain.
package docket

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/tx"
)

// Status of a docket.
type Status string

const (
	StatusProposed  Status = "proposed"
	StatusConfirmed Status = "confirmed"
	StatusDiscarded Status = "discarded"
)

var (
	ErrBrokenLink     = errors.New("docket does not link to the previous docket")
	ErrBadNumber      = errors.New("docket number out of sequence")
	ErrMerkleMismatch = errors.New("merkle root mismatch")
	ErrDigestMismatch = errors.New("docket digest mismatch")
)

// Header holds the fields covered by the docket digest.
type Header struct {
	ID             string         `json:"id"`
	RegisterID     string         `json:"registerId"`
	Number         uint64         `json:"number"`
	PreviousDigest ledger.Bytes32 `json:"previousDigest"`
	MerkleRoot     ledger.Bytes32 `json:"merkleRoot"`
	Proposer       string         `json:"proposer"`
	Round          uint64         `json:"round"` // consensus round the proposer led
	Timestamp      time.Time      `json:"timestamp"`
}

// Digest is the blake2b hash of the rlp encoded header.
func (h *Header) Digest() ledger.Bytes32 {
	return ledger.Blake2bFn(func(w io.Writer) {
		rlp.Encode(w, []any{
			h.ID,
			h.RegisterID,
			h.Number,
			h.PreviousDigest,
			h.MerkleRoot,
			h.Proposer,
			h.Round,
			uint64(h.Timestamp.UnixNano()),
		})
	})
}

// Vote is a validator's signature over the docket digest.
type Vote struct {
	ValidatorID string       `json:"validatorId"`
	Signature   tx.Signature `json:"signature"`
}

// Docket is a proposed or confirmed batch.
type Docket struct {
	Header            Header          `json:"header"`
	Transactions      tx.Transactions `json:"transactions"`
	ProposerSignature tx.Signature    `json:"proposerSignature"`
	Votes             []Vote          `json:"votes"`
	Status            Status          `json:"status"`
}

// New creates a proposed docket over txs with the merkle root filled in.
func New(header Header, txs tx.Transactions) *Docket {
	header.MerkleRoot = MerkleRoot(txs.Digests())
	return &Docket{
		Header:       header,
		Transactions: slices.Clone(txs),
		Status:       StatusProposed,
	}
}

// Digest returns the header digest.
func (d *Docket) Digest() ledger.Bytes32 {
	return d.Header.Digest()
}

// Number returns the docket number.
func (d *Docket) Number() uint64 { return d.Header.Number }

func (d *Docket) String() string {
	return fmt.Sprintf("Docket(%s #%d %s txs=%d votes=%d %s)",
		d.Header.RegisterID, d.Header.Number, d.Digest().AbbrevString(), len(d.Transactions), len(d.Votes), d.Status)
}

// TxIDs returns the ids of the included transactions.
func (d *Docket) TxIDs() []string {
	return d.Transactions.IDs()
}

// VerifyMerkleRoot checks the root against the included transactions.
func (d *Docket) VerifyMerkleRoot() error {
	if MerkleRoot(d.Transactions.Digests()) != d.Header.MerkleRoot {
		return ErrMerkleMismatch
	}
	return nil
}

// VerifyLink checks d follows prev. A nil prev means d must be the genesis docket.
func (d *Docket) VerifyLink(prev *Docket) error {
	if prev == nil {
		if d.Header.Number != 0 {
			return errors.Wrapf(ErrBadNumber, "want 0, got %d", d.Header.Number)
		}
		if !d.Header.PreviousDigest.IsZero() {
			return ErrBrokenLink
		}
		return nil
	}
	if d.Header.Number != prev.Header.Number+1 {
		return errors.Wrapf(ErrBadNumber, "want %d, got %d", prev.Header.Number+1, d.Header.Number)
	}
	if d.Header.PreviousDigest != prev.Digest() {
		return ErrBrokenLink
	}
	return nil
}

// AddVote attaches a vote, replacing any earlier vote of the same validator.
func (d *Docket) AddVote(v Vote) {
	for i := range d.Votes {
		if d.Votes[i].ValidatorID == v.ValidatorID {
			d.Votes[i] = v
			return
		}
	}
	d.Votes = append(d.Votes, v)
}

// Copy returns a copy that shares transactions but not votes.
func (d *Docket) Copy() *Docket {
	cpy := *d
	cpy.Transactions = slices.Clone(d.Transactions)
	cpy.Votes = slices.Clone(d.Votes)
	return &cpy
}

type jsonDocket Docket

// MarshalJSON includes the digest for readers.
func (d *Docket) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		*jsonDocket
		Digest ledger.Bytes32 `json:"digest"`
	}{(*jsonDocket)(d), d.Digest()})
}

// UnmarshalJSON rejects a digest that does not match the header.
func (d *Docket) UnmarshalJSON(data []byte) error {
	aux := struct {
		*jsonDocket
		Digest *ledger.Bytes32 `json:"digest"`
	}{jsonDocket: (*jsonDocket)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Digest != nil && *aux.Digest != d.Digest() {
		return ErrDigestMismatch
	}
	return nil
}
