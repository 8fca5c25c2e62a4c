// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/StuartF303/Sorcha-sub006/blueprint"
	"github.com/StuartF303/Sorcha-sub006/signing"
	"github.com/StuartF303/Sorcha-sub006/tx"
)

const (
	OrdersBlueprint = "orders"
	ActionCreate    = "create"
	ActionNote      = "note"

	submitterKey = "submitter"
)

// Orders returns a small blueprint with a schema bound action and a free form one.
func Orders() *blueprint.Blueprint {
	return &blueprint.Blueprint{
		ID:      OrdersBlueprint,
		Version: 1,
		Actions: []blueprint.Action{
			{
				ID: ActionCreate,
				Schema: json.RawMessage(`{
					"type": "object",
					"properties": {"amount": {"type": "integer", "minimum": 1}},
					"required": ["amount"]
				}`),
			},
			{ID: ActionNote},
		},
	}
}

// TxFactory creates signed transactions that pass validation against Registry.
type TxFactory struct {
	keyring  *signing.Keyring
	registry *blueprint.Registry
	seq      atomic.Int64
}

func NewTxFactory() *TxFactory {
	f := &TxFactory{
		keyring:  signing.NewKeyring(),
		registry: blueprint.NewRegistry(),
	}
	if _, err := f.keyring.Generate(submitterKey, tx.AlgSecp256k1); err != nil {
		panic(err)
	}
	if err := f.registry.Put(Orders()); err != nil {
		panic(err)
	}
	return f
}

func (f *TxFactory) Keyring() *signing.Keyring     { return f.keyring }
func (f *TxFactory) Registry() *blueprint.Registry { return f.registry }

// Builder returns a builder prefilled with a valid create order for registerID.
func (f *TxFactory) Builder(registerID string) *tx.Builder {
	n := f.seq.Add(1)
	return new(tx.Builder).
		ID(fmt.Sprintf("tx-%d-%d", n, RandInt())).
		RegisterID(registerID).
		BlueprintID(OrdersBlueprint).
		ActionID(ActionCreate).
		Payload(json.RawMessage(fmt.Sprintf(`{"amount": %d}`, n))).
		Timestamp(time.Now())
}

// Sign attaches a signature over the claimed payload digest.
func (f *TxFactory) Sign(trx *tx.Transaction) *tx.Transaction {
	digest := trx.PayloadDigest()
	sig, err := f.keyring.Sign(digest.Bytes(), submitterKey)
	if err != nil {
		panic(err)
	}
	return trx.WithSignature(sig)
}

// New creates a valid signed transaction for registerID.
func (f *TxFactory) New(registerID string) *tx.Transaction {
	return f.Sign(f.Builder(registerID).Build())
}
