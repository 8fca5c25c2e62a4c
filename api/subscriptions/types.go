// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package subscriptions

import (
	"time"

	"github.com/StuartF303/Sorcha-sub006/chain"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/txpool"
)

// PendingTxMessage announces a transaction admitted into a mempool.
type PendingTxMessage struct {
	RegisterID  string         `json:"registerId"`
	ID          string         `json:"id"`
	BlueprintID string         `json:"blueprintId"`
	ActionID    string         `json:"actionId"`
	Digest      ledger.Bytes32 `json:"payloadDigest"`
}

func convertTxEvent(ev *txpool.TxEvent) *PendingTxMessage {
	return &PendingTxMessage{
		RegisterID:  ev.RegisterID,
		ID:          ev.Tx.ID(),
		BlueprintID: ev.Tx.BlueprintID(),
		ActionID:    ev.Tx.ActionID(),
		Digest:      ev.Tx.PayloadDigest(),
	}
}

// DocketMessage announces a confirmed docket written to the ledger.
type DocketMessage struct {
	RegisterID     string         `json:"registerId"`
	Number         uint64         `json:"number"`
	Digest         ledger.Bytes32 `json:"digest"`
	PreviousDigest ledger.Bytes32 `json:"previousDigest"`
	Proposer       string         `json:"proposer"`
	Timestamp      time.Time      `json:"timestamp"`
	TxIDs          []string       `json:"txIds"`
	Votes          int            `json:"votes"`
}

func convertDocketEvent(ev *chain.NewDocketEvent) *DocketMessage {
	d := ev.Docket
	return &DocketMessage{
		RegisterID:     d.Header.RegisterID,
		Number:         d.Header.Number,
		Digest:         d.Digest(),
		PreviousDigest: d.Header.PreviousDigest,
		Proposer:       d.Header.Proposer,
		Timestamp:      d.Header.Timestamp,
		TxIDs:          d.TxIDs(),
		Votes:          len(d.Votes),
	}
}
