package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// httpService runs HTTP server under supervision. Server is shutdown
// gracefully when context is closed.
type httpService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

func (h *httpService) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s: %w", h.server.Addr, err)
	}

	errChan := make(chan error, 1)

	go func() {
		errChan <- h.server.Serve(listener)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("http server has failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()

	if err := h.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("cannot shutdown http server: %w", err)
	}

	<-errChan

	return ctx.Err()
}

func (h *httpService) String() string {
	return "http-server"
}

// hubService is a name for suture logs.
type hubService struct {
	hub interface {
		Serve(ctx context.Context) error
	}
}

func (h hubService) Serve(ctx context.Context) error {
	return h.hub.Serve(ctx)
}

func (h hubService) String() string {
	return "realtime-hub"
}
