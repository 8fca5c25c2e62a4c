// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package packer

import "github.com/StuartF303/Sorcha-sub006/metrics"

var metricPackedTxs = metrics.LazyLoadHistogram("packer_docket_tx_count", metrics.BucketBatch)
