// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package txpool

import "github.com/StuartF303/Sorcha-sub006/metrics"

var (
	metricTxPoolGauge = metrics.LazyLoadGaugeVec("mempool_tx_count", []string{"register"})
	metricTxAdmitted  = metrics.LazyLoadCounterVec("mempool_admitted_tx_count", []string{"register"})
)
