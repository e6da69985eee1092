package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second
	idleTimeout            = 2 * time.Minute
)

// Options wires the service endpoints together.
type Options struct {
	API      *API
	Relay    Handler      // GET /stream/play
	Web      Handler      // playground pages, optional
	Metrics  http.Handler // GET /metrics, optional
	Observer RequestObserver
	Limiter  *ClientLimiter
	Logger   *log.Logger

	ShutdownTimeout time.Duration
}

// Server is the HTTP front of the relay service.
type Server struct {
	router          *BasicRouter
	logger          *log.Logger
	shutdownTimeout time.Duration
}

// New builds the router: request id, recovery, access logging and CORS on every route,
// plus per-client rate limiting on resolve and search.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	r := NewBasicRouter()
	r.Use(
		RequestID(),
		Recover(opts.Logger),
		Logging(opts.Logger, opts.Observer),
		CORS(),
	)

	if opts.API != nil {
		var limit Middleware
		if opts.Limiter != nil {
			limit = opts.Limiter.Middleware()
		}
		opts.API.Register(r, limit)
	}
	if opts.Relay != nil {
		r.Handler(opts.Relay)
	}
	if opts.Web != nil {
		r.Handler(opts.Web)
	}
	if opts.Metrics != nil {
		r.Handle(http.MethodGet, "/metrics", opts.Metrics)
	}
	r.Fallback(http.HandlerFunc(NotFound))

	return &Server{router: r, logger: opts.Logger, shutdownTimeout: opts.ShutdownTimeout}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then drains in-flight requests for
// up to the shutdown timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is [Server.ListenAndServe] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		ErrorLog:          s.logger.StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel}),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down", "timeout", s.shutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	return nil
}
