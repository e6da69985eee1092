package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/ytrelay/internal/cache"
	"github.com/desertthunder/ytrelay/internal/metrics"
	"github.com/desertthunder/ytrelay/internal/relay"
	"github.com/desertthunder/ytrelay/internal/services"
	"github.com/desertthunder/ytrelay/internal/shared"
	"github.com/desertthunder/ytrelay/internal/tasks"
)

// stack is the resolver pipeline shared by serve and resolve.
type stack struct {
	cache    *cache.Cache
	engine   *tasks.Engine
	attempts *tasks.AttemptLog
	metrics  *metrics.Metrics
	searcher services.Searcher
	results  *services.CachingResolver

	ytdlp    *services.YTDLPResolver    // nil unless the yt-dlp backend is in use
	delegate *services.DelegateResolver // nil unless delegate_url is set
	cookies  string
	spotify  bool
}

// build wires the components named by the config.
func (r *Runner) build() (*stack, error) {
	cfg := r.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &stack{
		cache:    cache.New(cache.Options{Capacity: cfg.Cache.Capacity, TTL: cfg.Cache.TTL()}),
		attempts: tasks.NewAttemptLog(tasks.DefaultAttemptLogSize),
		metrics:  metrics.New(),
		searcher: r.searcher,
	}
	s.metrics.RegisterCache(s.cache)

	if s.searcher == nil {
		s.searcher = services.NewYouTubeSearcher()
	}

	youtube := r.youtube
	if youtube == nil {
		var err error
		if youtube, err = r.youtubeResolver(s); err != nil {
			return nil, err
		}
	}

	var spotify services.Resolver
	if cfg.Credentials.Spotify.Enabled() {
		sp, err := services.NewSpotifyResolver(services.SpotifyOptions{
			ClientID:     cfg.Credentials.Spotify.ClientID,
			ClientSecret: cfg.Credentials.Spotify.ClientSecret,
			HTTPClient:   r.httpClient,
			Timeout:      cfg.Resolver.Timeout(),
			Searcher:     s.searcher,
			YouTube:      youtube,
			Logger:       shared.WithLogger(r.logger, "component", "spotify"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure spotify: %w", err)
		}
		spotify = sp
		s.spotify = true
	}

	var local services.Resolver = services.NewPlatformResolver(youtube, spotify)
	if ttl := cfg.Resolver.ResultCacheTTL(); ttl > 0 {
		s.results = services.NewCachingResolver(local, ttl)
		local = s.results
	}

	delegate := r.delegate
	if delegate == nil && cfg.Resolver.DelegateURL != "" {
		s.delegate = services.NewDelegateResolver(cfg.Resolver.DelegateURL, r.httpClient, cfg.Resolver.DelegateTimeout())
		delegate = s.delegate
	}

	bound := cfg.Resolver.Timeout()
	if delegate != nil {
		bound += cfg.Resolver.DelegateTimeout()
	}

	engine, err := tasks.NewEngine(tasks.EngineOpts{
		Delegate: delegate,
		Local:    local,
		Cache:    s.cache,
		Attempts: s.attempts,
		Observer: s.metrics,
		Timeout:  bound,
		Logger:   shared.WithLogger(r.logger, "component", "engine"),
	})
	if err != nil {
		return nil, err
	}
	s.engine = engine

	return s, nil
}

// youtubeResolver builds the configured local backend and finds cookies for it.
func (r *Runner) youtubeResolver(s *stack) (services.Resolver, error) {
	cfg := r.config.Resolver

	path, origin, err := shared.DiscoverCookies(shared.CookieSearch{
		Configured: cfg.CookiesFile,
		Candidates: shared.DefaultCookieCandidates,
		Getenv:     r.getenv,
		Logger:     r.logger,
	})
	switch {
	case err == nil:
		s.cookies = path
		r.logger.Info("using cookies", "source", origin, "path", path)
	case errors.Is(err, shared.ErrMissingCredentials):
		r.logger.Warn("no cookies found, age-restricted and bot-checked videos will fail")
	default:
		r.logger.Warn("failed to prepare cookies", "error", err)
	}

	switch cfg.Backend {
	case "library":
		client := relay.NewUpstreamClient(0, 0)
		client.Timeout = cfg.Timeout()
		if cfg.ProxyURL != "" {
			proxy, err := url.Parse(cfg.ProxyURL)
			if err != nil {
				return nil, fmt.Errorf("%w: resolver.proxy_url %q", shared.ErrInvalidConfig, cfg.ProxyURL)
			}
			client.Transport.(*http.Transport).Proxy = http.ProxyURL(proxy)
		}
		return services.NewLibraryResolver(client, cfg.Timeout()), nil
	default:
		s.ytdlp = services.NewYTDLPResolver(services.YTDLPOptions{
			Path:          cfg.YTDLPPath,
			Timeout:       cfg.Timeout(),
			MaxConcurrent: int64(cfg.MaxConcurrent),
			CookiesFile:   s.cookies,
			ProxyURL:      cfg.ProxyURL,
			UseNode:       services.NodeAvailable(),
			Logger:        shared.WithLogger(r.logger, "component", "yt-dlp"),
		})
		return s.ytdlp, nil
	}
}

// backendName is the name reported by /api/status.
func (s *stack) backendName() string {
	resolvers := s.engine.Resolvers()
	return resolvers[len(resolvers)-1].Name()
}
