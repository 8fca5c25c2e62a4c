// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package election selects the validator allowed to propose the docket of a round.
// Every mechanism is a pure function of the round number and the active
// validator set, so all validators holding the same snapshot agree.
package election

import (
	"encoding/binary"
	"math"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/ledger"
)

// Mechanism tags a leader election strategy.
type Mechanism string

const (
	Rotating      Mechanism = "rotating"
	StakeWeighted Mechanism = "stake-weighted"
)

var (
	ErrNoValidators     = errors.New("no active validators")
	ErrUnknownMechanism = errors.New("unknown election mechanism")
)

// weights are compared as integers in millionths
const weightScale = 1_000_000

var (
	_ Elector = rotating{}
	_ Elector = stakeWeighted{}
)

// Elector picks exactly one leader per round.
type Elector interface {
	Mechanism() Mechanism
	Leader(round uint64, actives []directory.ValidatorInfo) (directory.ValidatorInfo, error)
}

// New returns the elector for the mechanism tag.
func New(m Mechanism) (Elector, error) {
	switch m {
	case Rotating:
		return rotating{}, nil
	case StakeWeighted:
		return stakeWeighted{}, nil
	}
	return nil, errors.Wrap(ErrUnknownMechanism, string(m))
}

// IsLeader returns whether selfID leads the round.
func IsLeader(e Elector, round uint64, actives []directory.ValidatorInfo, selfID string) (bool, error) {
	leader, err := e.Leader(round, actives)
	if err != nil {
		return false, err
	}
	return leader.ID == selfID, nil
}

// sorted returns the active validators ordered by id.
func sorted(actives []directory.ValidatorInfo) []directory.ValidatorInfo {
	list := slices.Clone(actives)
	list = slices.DeleteFunc(list, func(v directory.ValidatorInfo) bool { return !v.Active })
	slices.SortFunc(list, func(a, b directory.ValidatorInfo) int { return strings.Compare(a.ID, b.ID) })
	return list
}

// rotating selects position round mod n of the id ordered set.
type rotating struct{}

func (rotating) Mechanism() Mechanism { return Rotating }

func (rotating) Leader(round uint64, actives []directory.ValidatorInfo) (directory.ValidatorInfo, error) {
	list := sorted(actives)
	if len(list) == 0 {
		return directory.ValidatorInfo{}, ErrNoValidators
	}
	return list[round%uint64(len(list))], nil
}

// stakeWeighted draws a leader with probability proportional to trust weight,
// seeded by the round number.
type stakeWeighted struct{}

func (stakeWeighted) Mechanism() Mechanism { return StakeWeighted }

func (stakeWeighted) Leader(round uint64, actives []directory.ValidatorInfo) (directory.ValidatorInfo, error) {
	list := sorted(actives)
	if len(list) == 0 {
		return directory.ValidatorInfo{}, ErrNoValidators
	}

	var (
		weights = make([]uint64, len(list))
		total   uint64
	)
	for i, v := range list {
		w := math.Max(0, math.Min(1, v.Weight))
		weights[i] = uint64(math.Round(w * weightScale))
		total += weights[i]
	}
	if total == 0 {
		return rotating{}.Leader(round, list)
	}

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], round)
	seed := ledger.Blake2b([]byte(StakeWeighted), num[:])
	pick := binary.BigEndian.Uint64(seed[:8]) % total

	for i, w := range weights {
		if pick < w {
			return list[i], nil
		}
		pick -= w
	}
	return list[len(list)-1], nil
}
