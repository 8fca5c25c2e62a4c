// Copyright (c) 2025 The Sorcha developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/StuartF303/Sorcha-sub006/api/admin"
	"github.com/StuartF303/Sorcha-sub006/health"
)

// StartAdminServer serves the admin API on addr and returns its url and a
// function that stops it.
func StartAdminServer(addr string, logLevel *slog.LevelVar, health *health.Health) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen admin API addr [%v]", addr)
	}

	srv := &http.Server{Handler: admin.New(logLevel, health), ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	return "http://" + listener.Addr().String() + "/admin", serve(srv, listener), nil
}

// StartServer serves handler on addr and returns its url and a function that stops it.
func StartServer(addr string, handler http.Handler, timeout time.Duration) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen API addr [%v]", addr)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second, ReadTimeout: timeout}
	return "http://" + listener.Addr().String() + "/", serve(srv, listener), nil
}

func serve(srv *http.Server, listener net.Listener) func() {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("server stopped", "addr", listener.Addr(), "err", err)
		}
	}()
	return func() {
		srv.Close()
		wg.Wait()
	}
}
