package main

import (
	"context"
	"time"

	"github.com/desertthunder/ytrelay/internal/relay"
	"github.com/desertthunder/ytrelay/internal/server"
	"github.com/desertthunder/ytrelay/internal/services"
	"github.com/desertthunder/ytrelay/internal/shared"
	"github.com/desertthunder/ytrelay/internal/web"
	"github.com/urfave/cli/v3"
)

const warmupTimeout = 30 * time.Second

// Serve starts the HTTP server and blocks until ctx is cancelled.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if host := cmd.String("host"); host != "" {
		r.config.Server.Host = host
	}
	if port := int(cmd.Int("port")); port > 0 {
		r.config.Server.Port = port
	}

	s, err := r.build()
	if err != nil {
		return err
	}

	srv, err := r.newServer(s, version)
	if err != nil {
		return err
	}

	r.warmup(ctx, s)

	addr := r.config.Server.Addr()
	r.logger.Info("starting ytrelay",
		"addr", addr,
		"resolver", s.backendName(),
		"delegate", s.delegate != nil || r.delegate != nil,
		"spotify", s.spotify,
	)
	return srv.ListenAndServe(ctx, addr)
}

// newServer assembles the HTTP surface around a built stack.
func (r *Runner) newServer(s *stack, version string) (*server.Server, error) {
	cfg := r.config

	page, err := web.NewHandler(web.PageData{
		Service:     "ytrelay",
		Version:     version,
		SearchLimit: services.DefaultSearchLimit,
	})
	if err != nil {
		return nil, err
	}

	relayClient := relay.NewUpstreamClient(
		time.Duration(cfg.Relay.DialTimeoutSeconds)*time.Second,
		time.Duration(cfg.Relay.HeaderTimeoutSeconds)*time.Second,
	)

	status := func() server.Status {
		st := server.Status{
			Service:       "ytrelay",
			Version:       version,
			Resolver:      s.backendName(),
			NodeJS:        services.NodeAvailable(),
			Cookies:       s.cookies != "",
			CookiesPath:   s.cookies,
			Timeout:       cfg.Resolver.TimeoutSeconds,
			Port:          cfg.Server.Port,
			CacheEntries:  s.cache.Len(),
			CacheCapacity: s.cache.Capacity(),
			Spotify:       s.spotify,
		}
		if s.delegate != nil {
			st.Delegate = s.delegate.BaseURL()
		}
		return st
	}

	limiter := server.NewClientLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	if err := limiter.SetTrustedProxies(cfg.RateLimit.TrustedProxies); err != nil {
		return nil, err
	}

	api := server.NewAPI(s.engine, s.searcher, s.attempts, status, shared.WithLogger(r.logger, "component", "api"))
	api.SetSearchTimeout(cfg.Resolver.Timeout())

	return server.New(server.Options{
		API: api,
		Relay: relay.NewHandler(relay.Options{
			Cache:     s.cache,
			Client:    relayClient,
			UserAgent: cfg.Relay.UserAgent,
			Logger:    shared.WithLogger(r.logger, "component", "relay"),
			Observer:  s.metrics,
		}),
		Web:             page,
		Metrics:         s.metrics.Handler(),
		Observer:        s.metrics,
		Limiter:         limiter,
		Logger:          r.logger,
		ShutdownTimeout: time.Duration(cfg.Server.ShutdownSeconds) * time.Second,
	}), nil
}

// warmup starts the best-effort startup probes. Their outcome is only logged and never
// delays serving.
func (r *Runner) warmup(ctx context.Context, s *stack) {
	ctx = context.WithoutCancel(ctx)

	if s.ytdlp != nil {
		go func() {
			ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
			defer cancel()
			if v, err := s.ytdlp.Version(ctx); err != nil {
				r.logger.Warn("yt-dlp warmup failed", "error", err)
			} else {
				r.logger.Info("yt-dlp ready", "version", v)
			}
		}()
	}

	if s.delegate != nil {
		go func() {
			ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
			defer cancel()
			if err := s.delegate.Ping(ctx); err != nil {
				r.logger.Warn("delegate unreachable", "url", s.delegate.BaseURL(), "error", err)
			} else {
				r.logger.Info("delegate reachable", "url", s.delegate.BaseURL())
			}
		}()
	}
}
