// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HPMS Contributors

package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpms/hpms/internal/auth"
	"github.com/hpms/hpms/internal/observability"
	"github.com/hpms/hpms/pkg/errutil"
)

type fakeServer struct {
	opts    observability.Options
	metrics *auth.Metrics
	started chan struct{}
	errCh   chan error
	stopped bool
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		metrics: auth.NewMetrics(prometheus.NewRegistry()),
		started: make(chan struct{}),
		errCh:   make(chan error, 1),
	}
}

func (s *fakeServer) Start() (<-chan error, error) {
	close(s.started)
	return s.errCh, nil
}

func (s *fakeServer) Stop(context.Context) error {
	s.stopped = true
	return nil
}

func (s *fakeServer) Addr() string          { return "127.0.0.1:9464" }
func (s *fakeServer) Metrics() *auth.Metrics { return s.metrics }

func serverDeps(srv *fakeServer) *Deps {
	return &Deps{
		ObservabilityServerFactory: func(opts observability.Options) ObservabilityServer {
			srv.opts = opts
			return srv
		},
	}
}

func TestServeCmd_RequiresMetricsAddr(t *testing.T) {
	isolateEnv(t)
	srv := newFakeServer()

	_, err := execute(t, serverDeps(srv), "", "serve")

	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Nil(t, srv.opts.Ready, "server should not be built")
}

func TestServeCmd_StopsOnCancel(t *testing.T) {
	isolateEnv(t)
	srv := newFakeServer()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := executeContext(ctx, serverDeps(srv), "", "--metrics-addr", "127.0.0.1:0", "serve")
		done <- result{out, err}
	}()

	select {
	case <-srv.started:
	case <-time.After(5 * time.Second):
		t.Fatal("server was not started")
	}

	assert.Equal(t, "127.0.0.1:0", srv.opts.Addr)
	require.NotNil(t, srv.opts.Ready)
	require.NotNil(t, srv.opts.PendingWrites)
	assert.NoError(t, srv.opts.Ready(ctx), "memory-only store is always ready")
	assert.Zero(t, srv.opts.PendingWrites())

	cancel()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Contains(t, res.out, "Serving metrics and health checks on 127.0.0.1:9464")
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.True(t, srv.stopped)
}

func TestServeCmd_ServerFailure(t *testing.T) {
	isolateEnv(t)
	srv := newFakeServer()
	srv.errCh <- errors.New("accept tcp: use of closed network connection")

	_, err := execute(t, serverDeps(srv), "", "--metrics-addr", "127.0.0.1:0", "serve")

	errutil.AssertErrorCode(t, err, "SERVE_FAILED")
	assert.True(t, srv.stopped)
}
