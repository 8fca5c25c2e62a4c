// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package directory

import (
	"context"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ValidatorInfo describes a validator of a register.
type ValidatorInfo struct {
	ID        string        `json:"id"`
	Endpoint  string        `json:"endpoint"`
	PublicKey hexutil.Bytes `json:"publicKey"`
	Algorithm string        `json:"algorithm"`
	Weight    float64       `json:"weight"`
	Active    bool          `json:"active"`
}

// Source is the peer directory collaborator.
type Source interface {
	QueryValidators(ctx context.Context, registerID string) ([]ValidatorInfo, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, registerID string) ([]ValidatorInfo, error)

func (f SourceFunc) QueryValidators(ctx context.Context, registerID string) ([]ValidatorInfo, error) {
	return f(ctx, registerID)
}

// RegistrationMode controls how new validators join.
type RegistrationMode string

const (
	ModePublic  RegistrationMode = "public"
	ModeConsent RegistrationMode = "consent"
)

// Policy is the membership policy taken from the genesis config.
type Policy struct {
	MinValidators int
	MaxValidators int
	Mode          RegistrationMode
	RequireStake  bool
	MinStake      float64 // minimum registration weight when RequireStake is set
}

// Registration is a request to join the validator set.
type Registration struct {
	ValidatorID string        `json:"validatorId"`
	PublicKey   hexutil.Bytes `json:"publicKey"`
	Algorithm   string        `json:"algorithm"`
	Endpoint    string        `json:"endpoint"`
	Weight      float64       `json:"weight,omitempty"`
}

// Outcome of a registration.
type Outcome string

const (
	OutcomeAccepted Outcome = "accepted"
	OutcomePending  Outcome = "pending"
	OutcomeRejected Outcome = "rejected"
)

// RegisterResult is the outcome of Register or Approve.
type RegisterResult struct {
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
}

// Count summarizes the active validators.
type Count struct {
	Active    int  `json:"active"`
	HasQuorum bool `json:"hasQuorum"`
}
