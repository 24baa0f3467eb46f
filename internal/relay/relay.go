// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay serves a browser client and forwards its /api requests to an
// Ollama server, adding the permissive CORS headers Ollama itself does not
// send. Streaming responses are flushed through unbuffered so token
// fragments reach the browser as they arrive.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"
)

// Config holds the relay configuration.
type Config struct {
	// ListenAddr is the address the relay binds, e.g. ":8080".
	ListenAddr string

	// Target is the Ollama base URL requests are forwarded to,
	// e.g. "http://192.168.1.86:11434".
	Target string

	// StaticDir serves static files for all non-API paths when non-empty.
	StaticDir string

	// RateLimit is the per-client requests-per-second cap (0 disables).
	RateLimit float64

	// RateBurst is the per-client burst size (default 20 when limiting).
	RateBurst int
}

// Relay is the HTTP server fronting the Ollama API.
type Relay struct {
	config Config
	server *http.Server
	proxy  *httputil.ReverseProxy
}

// New creates a relay for the given configuration.
func New(config Config) (*Relay, error) {
	target, err := url.Parse(config.Target)
	if err != nil {
		return nil, fmt.Errorf("invalid relay target %q: %w", config.Target, err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("relay target %q must be an absolute URL", config.Target)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)

	// Negative FlushInterval flushes after every write; NDJSON fragments
	// must not sit in a buffer until the stream ends.
	proxy.FlushInterval = -1

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Printf("RELAY: upstream error | path=%s error=%v", r.URL.Path, err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
	}

	r := &Relay{config: config, proxy: proxy}

	mux := http.NewServeMux()
	mux.Handle("/api/", proxy)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	if config.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(config.StaticDir)))
	}

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(),
		LoggingMiddleware(),
		CORSMiddleware(),
	}
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst == 0 {
			burst = 20
		}
		middlewares = append(middlewares, RateLimitMiddleware(NewRateLimiter(config.RateLimit, burst)))
	}

	r.server = &http.Server{
		Addr:    config.ListenAddr,
		Handler: Chain(middlewares...)(mux),

		// No WriteTimeout: chat streams are long-lived.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return r, nil
}

// Handler returns the relay's full handler chain, for tests and embedding.
func (r *Relay) Handler() http.Handler {
	return r.server.Handler
}

// ListenAndServe runs the relay until the context is cancelled or the
// listener fails.
func (r *Relay) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("RELAY: listening on %s, forwarding to %s", r.config.ListenAddr, r.config.Target)
		errCh <- r.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
