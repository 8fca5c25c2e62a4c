// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package signing provides the signing capability consumed by transaction
// validation and docket attestation.
package signing

import (
	"bytes"
	"crypto/ed25519"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/tx"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	ErrUnknownKey           = errors.New("unknown key reference")
)

// Signer signs and verifies detached signatures.
type Signer interface {
	// Sign signs data with the key held under keyRef.
	Sign(data []byte, keyRef string) (tx.Signature, error)
	// Verify checks sig against data and the public key it carries.
	// A malformed or mismatching signature is reported as false with nil error.
	// ErrUnsupportedAlgorithm is returned for unknown algorithm tags.
	Verify(sig tx.Signature, data []byte) (bool, error)
	// Supports returns whether the algorithm tag can be verified.
	Supports(alg string) bool
}

// Supports returns whether alg is a known algorithm tag.
func Supports(alg string) bool {
	switch alg {
	case tx.AlgSecp256k1, tx.AlgEd25519:
		return true
	}
	return false
}

// Verify verifies sig over data without requiring any private key.
func Verify(sig tx.Signature, data []byte) (bool, error) {
	switch sig.Algorithm {
	case tx.AlgSecp256k1:
		return verifySecp256k1(sig.PublicKey, sig.Signature, data), nil
	case tx.AlgEd25519:
		if len(sig.PublicKey) != ed25519.PublicKeySize || len(sig.Signature) != ed25519.SignatureSize {
			return false, nil
		}
		return ed25519.Verify(ed25519.PublicKey(sig.PublicKey), data, sig.Signature), nil
	}
	return false, errors.Wrap(ErrUnsupportedAlgorithm, sig.Algorithm)
}

// secp256k1 signatures cover the blake2b hash of data.
func verifySecp256k1(pub, sig, data []byte) bool {
	pk, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false
	}
	hash := ledger.Blake2b(data)
	switch len(sig) {
	case crypto.SignatureLength:
		recovered, err := crypto.Ecrecover(hash[:], sig)
		if err != nil {
			return false
		}
		return bytes.Equal(recovered, pk.SerializeUncompressed())
	case crypto.SignatureLength - 1:
		return crypto.VerifySignature(pk.SerializeCompressed(), hash[:], sig)
	}
	return false
}
