// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consensus

import "github.com/StuartF303/Sorcha-sub006/metrics"

var (
	metricRounds          = metrics.LazyLoadCounterVec("round_count", []string{"outcome"})
	metricRoundDuration   = metrics.LazyLoadHistogram("round_duration_ms", metrics.BucketRound)
	metricVotesCollected  = metrics.LazyLoadHistogram("votes_collected", metrics.BucketVotes)
	metricDocketConfirmed = metrics.LazyLoadCounterVec("docket_confirmed_count", []string{"source"})
)
