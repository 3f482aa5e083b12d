package listener

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stephnangue/regbridge/logger"
)

// Listener serves the regbridge HTTP API on one address.
type Listener struct {
	logger  logger.Logger
	server  *http.Server
	stopped atomic.Bool

	tlsCertFile string
	tlsKeyFile  string
}

// Config configures the listener.
type Config struct {
	Logger      logger.Logger
	Address     string
	TLSCertFile string
	TLSKeyFile  string
}

// New wraps the handler with the listener-level middleware stack and
// prepares (but does not start) the HTTP server.
func New(cfg Config, httpHandler http.Handler) (*Listener, error) {
	var handler http.Handler = httpHandler
	handler = middleware.RealIP(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recoverer(handler)

	server := &http.Server{
		Addr:         cfg.Address,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Listener{
		logger:      log,
		server:      server,
		tlsCertFile: cfg.TLSCertFile,
		tlsKeyFile:  cfg.TLSKeyFile,
	}, nil
}

// Addr returns the configured listen address.
func (l *Listener) Addr() string {
	return l.server.Addr
}

// Start begins serving and blocks until the context is cancelled or the
// server fails.
func (l *Listener) Start(ctx context.Context) error {
	l.logger.Info("starting HTTP server", logger.String("address", l.server.Addr))

	errChan := make(chan error, 1)
	go func() {
		var err error
		if l.tlsCertFile != "" && l.tlsKeyFile != "" {
			err = l.server.ListenAndServeTLS(l.tlsCertFile, l.tlsKeyFile)
		} else {
			err = l.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		l.logger.Info("shutdown signal received")
		return l.Stop()
	case err := <-errChan:
		l.logger.Error("HTTP server error", logger.Err(err))
		return err
	}
}

// Stop drains in-flight requests and shuts the server down. Safe to call
// more than once.
func (l *Listener) Stop() error {
	if !l.stopped.CompareAndSwap(false, true) {
		return nil
	}

	l.logger.Info("shutting down HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := l.server.Shutdown(ctx); err != nil {
		l.logger.Error("error when shutting down the HTTP server", logger.Err(err))
		return err
	}

	l.logger.Info("HTTP server stopped gracefully")
	return nil
}
