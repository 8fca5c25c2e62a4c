// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package signing

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/tx"
)

type key struct {
	alg   string
	ecdsa *ecdsa.PrivateKey
	ed    ed25519.PrivateKey
}

func (k *key) publicKey() []byte {
	if k.alg == tx.AlgSecp256k1 {
		return crypto.CompressPubkey(&k.ecdsa.PublicKey)
	}
	return append([]byte(nil), k.ed.Public().(ed25519.PublicKey)...)
}

// Keyring is an in-process Signer holding private keys by reference.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]*key
}

// NewKeyring creates an empty keyring.
func NewKeyring() *Keyring {
	return &Keyring{keys: make(map[string]*key)}
}

// AddSecp256k1 stores a secp256k1 key under ref, replacing any previous key.
func (k *Keyring) AddSecp256k1(ref string, priv *ecdsa.PrivateKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[ref] = &key{alg: tx.AlgSecp256k1, ecdsa: priv}
}

// AddEd25519 stores an ed25519 key under ref, replacing any previous key.
func (k *Keyring) AddEd25519(ref string, priv ed25519.PrivateKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys[ref] = &key{alg: tx.AlgEd25519, ed: priv}
}

// Generate creates a fresh key of the given algorithm under ref and returns its public key.
func (k *Keyring) Generate(ref, alg string) ([]byte, error) {
	switch alg {
	case tx.AlgSecp256k1:
		priv, err := crypto.GenerateKey()
		if err != nil {
			return nil, err
		}
		k.AddSecp256k1(ref, priv)
	case tx.AlgEd25519:
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, err
		}
		k.AddEd25519(ref, priv)
	default:
		return nil, errors.Wrap(ErrUnsupportedAlgorithm, alg)
	}
	pub, _, err := k.PublicKey(ref)
	return pub, err
}

// PublicKey returns the public key and algorithm of the key under ref.
func (k *Keyring) PublicKey(ref string) ([]byte, string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	key, ok := k.keys[ref]
	if !ok {
		return nil, "", errors.Wrap(ErrUnknownKey, ref)
	}
	return key.publicKey(), key.alg, nil
}

// Sign implements Signer.
func (k *Keyring) Sign(data []byte, keyRef string) (tx.Signature, error) {
	k.mu.RLock()
	key, ok := k.keys[keyRef]
	k.mu.RUnlock()
	if !ok {
		return tx.Signature{}, errors.Wrap(ErrUnknownKey, keyRef)
	}

	sig := tx.Signature{PublicKey: key.publicKey(), Algorithm: key.alg}
	switch key.alg {
	case tx.AlgSecp256k1:
		hash := ledger.Blake2b(data)
		b, err := crypto.Sign(hash[:], key.ecdsa)
		if err != nil {
			return tx.Signature{}, errors.Wrap(err, "sign")
		}
		sig.Signature = b
	case tx.AlgEd25519:
		sig.Signature = ed25519.Sign(key.ed, data)
	}
	return sig, nil
}

// Verify implements Signer.
func (k *Keyring) Verify(sig tx.Signature, data []byte) (bool, error) {
	return Verify(sig, data)
}

// Supports implements Signer.
func (k *Keyring) Supports(alg string) bool {
	return Supports(alg)
}
