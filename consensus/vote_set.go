// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consensus

import (
	"bytes"

	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/docket"
	"github.com/StuartF303/Sorcha-sub006/ledger"
	"github.com/StuartF303/Sorcha-sub006/signing"
)

// voteSet tracks the verified votes for one docket digest. The electorate is
// fixed when the set is created.
type voteSet struct {
	digest    ledger.Bytes32
	threshold int
	signer    signing.Signer
	electors  map[string]directory.ValidatorInfo

	votes []docket.Vote
	voted map[string]bool
}

func newVoteSet(digest ledger.Bytes32, electors []directory.ValidatorInfo, threshold int, signer signing.Signer) *voteSet {
	m := make(map[string]directory.ValidatorInfo, len(electors))
	for _, v := range electors {
		m[v.ID] = v
	}
	return &voteSet{
		digest:    digest,
		threshold: threshold,
		signer:    signer,
		electors:  m,
		voted:     make(map[string]bool),
	}
}

// addVote adds a vote if it is signed by an elector over the digest.
// It returns false for invalid or repeated votes.
func (vs *voteSet) addVote(v docket.Vote) bool {
	if vs.voted[v.ValidatorID] {
		return false
	}
	elector, ok := vs.electors[v.ValidatorID]
	if !ok {
		return false
	}
	if !bytes.Equal(elector.PublicKey, v.Signature.PublicKey) {
		return false
	}
	if ok, err := vs.signer.Verify(v.Signature, vs.digest.Bytes()); err != nil || !ok {
		return false
	}
	vs.voted[v.ValidatorID] = true
	vs.votes = append(vs.votes, v)
	return true
}

func (vs *voteSet) count() int { return len(vs.votes) }

func (vs *voteSet) reached() bool { return len(vs.votes) >= vs.threshold }

// take returns at most max votes in arrival order. max <= 0 means all.
func (vs *voteSet) take(max int) []docket.Vote {
	if max <= 0 || max >= len(vs.votes) {
		return append([]docket.Vote(nil), vs.votes...)
	}
	return append([]docket.Vote(nil), vs.votes[:max]...)
}
