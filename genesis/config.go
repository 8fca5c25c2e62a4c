// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/StuartF303/Sorcha-sub006/directory"
	"github.com/StuartF303/Sorcha-sub006/election"
)

// Quorum rule tags.
const (
	SimpleMajority = "simple-majority"
	TwoThirds      = "two-thirds"
)

// Duration is a time.Duration encoded as a Go duration string, e.g. "30s".
type Duration time.Duration

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\"")
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Consensus parameters.
type Consensus struct {
	Algorithm           string   `json:"algorithm"`
	VoteTimeout         Duration `json:"voteTimeout"` // vote collection budget
	MinSignatures       int      `json:"minSignatures"`
	MaxSignatures       int      `json:"maxSignatures"`
	MaxTxPerDocket      int      `json:"maxTransactionsPerDocket"`
	DocketBuildInterval Duration `json:"docketBuildInterval"`
}

// Membership parameters.
type Membership struct {
	MinValidators    int                        `json:"minValidators"`
	MaxValidators    int                        `json:"maxValidators"`
	RegistrationMode directory.RegistrationMode `json:"registrationMode"`
	RequireStake     bool                       `json:"requireStake,omitempty"`
	MinStake         float64                    `json:"minStake,omitempty"`
}

// LeaderElection parameters.
type LeaderElection struct {
	Mechanism         election.Mechanism `json:"mechanism"`
	HeartbeatInterval Duration           `json:"heartbeatInterval"`
	LeaderTimeout     Duration           `json:"leaderTimeout"`
	TermDuration      Duration           `json:"termDuration"`
}

// Config is the register configuration derived from its genesis docket.
type Config struct {
	Consensus      Consensus      `json:"consensus"`
	Membership     Membership     `json:"membership"`
	LeaderElection LeaderElection `json:"leaderElection"`
}

// DefaultConfig is used for a register without a genesis control record:
// a single validator, public registration and rotating leadership.
func DefaultConfig() *Config {
	return &Config{
		Consensus: Consensus{
			Algorithm:           SimpleMajority,
			VoteTimeout:         Duration(30 * time.Second),
			MinSignatures:       1,
			MaxSignatures:       100,
			MaxTxPerDocket:      1000,
			DocketBuildInterval: Duration(10 * time.Second),
		},
		Membership: Membership{
			MinValidators:    1,
			MaxValidators:    100,
			RegistrationMode: directory.ModePublic,
		},
		LeaderElection: LeaderElection{
			Mechanism:         election.Rotating,
			HeartbeatInterval: Duration(5 * time.Second),
			LeaderTimeout:     Duration(30 * time.Second),
			TermDuration:      Duration(time.Minute),
		},
	}
}

// Validate checks every field and reports all violations at once.
func (c *Config) Validate() error {
	var v violations

	cs := c.Consensus
	switch cs.Algorithm {
	case SimpleMajority, TwoThirds:
	default:
		v.add("consensus.algorithm", "unknown quorum rule %q", cs.Algorithm)
	}
	v.positive("consensus.voteTimeout", cs.VoteTimeout)
	v.positive("consensus.docketBuildInterval", cs.DocketBuildInterval)
	if cs.MinSignatures < 1 {
		v.add("consensus.minSignatures", "must be at least 1")
	}
	if cs.MaxSignatures < cs.MinSignatures {
		v.add("consensus.maxSignatures", "must not be less than minSignatures")
	}
	if cs.MaxTxPerDocket < 1 {
		v.add("consensus.maxTransactionsPerDocket", "must be at least 1")
	}

	m := c.Membership
	if m.MinValidators < 1 {
		v.add("membership.minValidators", "must be at least 1")
	}
	if m.MaxValidators < m.MinValidators {
		v.add("membership.maxValidators", "must not be less than minValidators")
	}
	switch m.RegistrationMode {
	case directory.ModePublic, directory.ModeConsent:
	default:
		v.add("membership.registrationMode", "unknown mode %q", m.RegistrationMode)
	}
	if m.MinStake < 0 || m.MinStake > 1 {
		v.add("membership.minStake", "must be within 0..1")
	}

	le := c.LeaderElection
	if _, err := election.New(le.Mechanism); err != nil {
		v.add("leaderElection.mechanism", "unknown mechanism %q", le.Mechanism)
	}
	v.positive("leaderElection.heartbeatInterval", le.HeartbeatInterval)
	v.positive("leaderElection.leaderTimeout", le.LeaderTimeout)
	v.positive("leaderElection.termDuration", le.TermDuration)
	if le.LeaderTimeout > 0 && le.HeartbeatInterval > le.LeaderTimeout {
		v.add("leaderElection.leaderTimeout", "must not be less than heartbeatInterval")
	}

	return v.err()
}

// Quorum returns the number of agreeing votes needed out of n active
// validators, never less than MinSignatures.
func (c *Consensus) Quorum(n int) int {
	var q int
	if c.Algorithm == TwoThirds {
		q = 2*n/3 + 1
	} else {
		q = n/2 + 1
	}
	return max(q, c.MinSignatures)
}

// Reachable returns whether n active validators can produce a quorum.
func (c *Consensus) Reachable(n int) bool {
	return c.Quorum(n) <= n
}

// DirectoryPolicy returns the membership policy for the validator directory.
func (c *Config) DirectoryPolicy() directory.Policy {
	return directory.Policy{
		MinValidators: c.Membership.MinValidators,
		MaxValidators: c.Membership.MaxValidators,
		Mode:          c.Membership.RegistrationMode,
		RequireStake:  c.Membership.RequireStake,
		MinStake:      c.Membership.MinStake,
	}
}

// Elector returns the leader elector for the configured mechanism.
func (c *Config) Elector() (election.Elector, error) {
	return election.New(c.LeaderElection.Mechanism)
}
