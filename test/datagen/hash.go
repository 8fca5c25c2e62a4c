// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package datagen

import (
	"crypto/rand"

	"github.com/StuartF303/Sorcha-sub006/ledger"
)

func RandomHash() ledger.Bytes32 {
	var b32 ledger.Bytes32

	rand.Read(b32[:])
	return b32
}
