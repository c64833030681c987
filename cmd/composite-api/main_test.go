package main

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-composite/internal/logger"
)

func TestServeDrainsAndFlushesBeforeReturning(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	started := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		close(started)
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	})}

	var flushed, tracingStopped atomic.Bool
	flush := func(context.Context) error {
		time.Sleep(100 * time.Millisecond)
		flushed.Store(true)
		return nil
	}
	stopTracing := func(context.Context) error {
		tracingStopped.Store(true)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- serve(ctx, srv, l, 5*time.Second, logger.Nop(), flush, stopTracing) }()

	status := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + l.Addr().String() + "/aggregate/1")
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-started
	cancel()

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
	assert.True(t, flushed.Load(), "publisher is flushed before serve returns")
	assert.True(t, tracingStopped.Load())
	assert.Equal(t, http.StatusOK, <-status, "in-flight request completes")
}

func TestServeListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	err = serve(context.Background(), &http.Server{}, l, time.Second, logger.Nop())

	assert.Error(t, err)
}
