// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package httpserver

import (
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/StuartF303/Sorcha-sub006/api"
	"github.com/StuartF303/Sorcha-sub006/metrics"
)

// StartMetricsServer serves the prometheus metrics under /metrics.
func StartMetricsServer(addr string) (string, func(), error) {
	router := mux.NewRouter()
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	handler := handlers.CompressHandler(router)

	url, closeFunc, err := api.StartServer(addr, handler, 5*time.Second)
	if err != nil {
		return "", nil, err
	}
	return url + "metrics", closeFunc, nil
}
