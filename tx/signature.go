// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package tx

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Algorithm tags understood by the signing capability.
const (
	AlgSecp256k1 = "secp256k1"
	AlgEd25519   = "ed25519"
)

// Signature is a detached signature over a digest.
type Signature struct {
	PublicKey hexutil.Bytes `json:"publicKey"`
	Signature hexutil.Bytes `json:"signature"`
	Algorithm string        `json:"algorithm"`
}
