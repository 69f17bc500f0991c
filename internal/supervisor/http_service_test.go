// Pulse - External Activity Sync and Adaptive Polling Engine
// Copyright 2026 Remco Stoeten (remcostoeten)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/remcostoeten/pulse

package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockServer struct {
	listenErr   error
	blockListen chan struct{}
	shutdowns   int32
}

func (m *mockServer) ListenAndServe() error {
	if m.blockListen != nil {
		<-m.blockListen
	}
	return m.listenErr
}

func (m *mockServer) Shutdown(context.Context) error {
	atomic.AddInt32(&m.shutdowns, 1)
	if m.blockListen != nil {
		close(m.blockListen)
	}
	return nil
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := &mockServer{blockListen: make(chan struct{})}
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&srv.shutdowns))
}

func TestHTTPServerServiceStartupFailure(t *testing.T) {
	srv := &mockServer{listenErr: errors.New("address in use")}
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}
