// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package docket

import (
	"math/bits"

	"github.com/StuartF303/Sorcha-sub006/ledger"
)

// nextPowerOfTwo returns the next highest power of two from a given number if
// it is not already a power of two.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func hashMerkleBranches(left, right ledger.Bytes32) ledger.Bytes32 {
	return ledger.Blake2b(left[:], right[:])
}

// BuildMerkleTreeStore builds the merkle tree of leaves as a linear array.
// The leaves come first, followed by each level, with the root last. Empty
// slots of an incomplete level stay nil. A node without a right sibling is
// hashed with itself.
func BuildMerkleTreeStore(leaves []ledger.Bytes32) []*ledger.Bytes32 {
	if len(leaves) == 0 {
		return []*ledger.Bytes32{{}}
	}

	nextPoT := nextPowerOfTwo(len(leaves))
	arraySize := nextPoT*2 - 1
	merkles := make([]*ledger.Bytes32, arraySize)

	for i := range leaves {
		leaf := leaves[i]
		merkles[i] = &leaf
	}

	offset := nextPoT
	for i := 0; i < arraySize-1; i += 2 {
		switch {
		case merkles[i] == nil:
			merkles[offset] = nil
		case merkles[i+1] == nil:
			h := hashMerkleBranches(*merkles[i], *merkles[i])
			merkles[offset] = &h
		default:
			h := hashMerkleBranches(*merkles[i], *merkles[i+1])
			merkles[offset] = &h
		}
		offset++
	}
	return merkles
}

// MerkleRoot computes the merkle root of the digests. The root of no digests is the zero hash.
func MerkleRoot(digests []ledger.Bytes32) ledger.Bytes32 {
	store := BuildMerkleTreeStore(digests)
	return *store[len(store)-1]
}
