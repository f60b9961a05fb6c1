/*
Copyright 2020 The node-detacher authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package httpserver exposes the process's liveness, readiness and metrics
// endpoints. It is split out from controller-runtime's manager-builtin health
// server because readiness here depends on leader-specific state (first tick
// done) that the manager's default prober doesn't model.
package httpserver

import (
	"context"
	"net/http"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

// ReadyChecker reports whether the process is ready to serve /readyz: the
// cluster view has synced and, for leaders, the first reconcile tick is done.
type ReadyChecker func() bool

// Server serves /healthz, /readyz and /metrics.
type Server struct {
	Addr    string
	Ready   ReadyChecker
	Log     logr.Logger
	httpSrv *http.Server
}

// New builds a Server listening on addr (host:port).
func New(addr string, ready ReadyChecker, log logr.Logger) *Server {
	return &Server{Addr: addr, Ready: ready, Log: log}
}

// Run starts the server and blocks until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	s.httpSrv = &http.Server{Addr: s.Addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info("http server listening", "addr", s.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return s.httpSrv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleReadyz(w http.ResponseWriter, _ *http.Request) {
	if s.Ready == nil || !s.Ready() {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
