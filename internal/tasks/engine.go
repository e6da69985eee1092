package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytrelay/internal/cache"
	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/relay"
	"github.com/desertthunder/ytrelay/internal/services"
	"github.com/desertthunder/ytrelay/internal/shared"
	"golang.org/x/sync/singleflight"
)

// DefaultResolveTimeout bounds one shared resolution when [EngineOpts.Timeout] is unset.
const DefaultResolveTimeout = 35 * time.Second

// ResolveObserver receives one call per resolver attempt.
type ResolveObserver interface {
	ObserveResolve(resolver string, success bool, elapsed time.Duration)
}

// EngineOpts configures an [Engine].
type EngineOpts struct {
	Delegate services.Resolver // optional, tried first
	Local    services.Resolver // required
	Cache    *cache.Cache      // required
	Attempts *AttemptLog       // optional
	Observer ResolveObserver   // optional
	Timeout  time.Duration     // bounds the whole resolver chain, detached from callers
	Logger   *log.Logger
	Now      func() time.Time
}

// Engine turns a source reference into a [models.StreamResponse]. The delegate resolver, when
// configured, is always tried before the local one and at most once per request. Concurrent
// requests for the same source share one resolution.
type Engine struct {
	delegate services.Resolver
	local    services.Resolver
	cache    *cache.Cache
	attempts *AttemptLog
	observer ResolveObserver
	timeout  time.Duration
	logger   *log.Logger
	now      func() time.Time
	group    singleflight.Group
}

// NewEngine creates an [Engine].
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Local == nil {
		return nil, fmt.Errorf("%w: local resolver", shared.ErrMissingConfig)
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("%w: cache", shared.ErrMissingConfig)
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultResolveTimeout
	}
	return &Engine{
		delegate: opts.Delegate,
		local:    opts.Local,
		cache:    opts.Cache,
		attempts: opts.Attempts,
		observer: opts.Observer,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		now:      opts.Now,
	}, nil
}

// Resolvers returns the resolver chain in the order it is tried.
func (e *Engine) Resolvers() []services.Resolver {
	if e.delegate == nil {
		return []services.Resolver{e.local}
	}
	return []services.Resolver{e.delegate, e.local}
}

// Stream resolves sourceID and registers its direct URL with the short-ID cache.
//
// The shared resolution outlives any single caller but is bounded by the engine timeout, so a
// stalled upstream releases the source key and the next request starts a fresh resolution.
//
// Errors wrap [shared.ErrInvalidInput] for unparseable references,
// [shared.ErrTimeout] when the caller or the engine deadline expired and
// [shared.ErrResolutionFailed] when every resolver failed; the last resolver's error is
// wrapped too so callers can tell a missing video from an outage.
func (e *Engine) Stream(ctx context.Context, sourceID string) (*models.StreamResponse, error) {
	ref, err := services.ParseSource(sourceID)
	if err != nil {
		return nil, err
	}
	key := ref.Key()

	ch := e.group.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		return e.resolve(rctx, key)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", shared.ErrTimeout, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		resp := *res.Val.(*models.StreamResponse)
		return &resp, nil
	}
}

func (e *Engine) resolve(ctx context.Context, key string) (*models.StreamResponse, error) {
	var lastErr error
	for i, r := range e.Resolvers() {
		record, err := e.attempt(ctx, r, key, e.delegate != nil && i == 0)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %s after %s: %w", shared.ErrTimeout, key, e.timeout, err)
			}
			continue
		}

		cacheID := e.cache.Put(record.DirectURL)
		return &models.StreamResponse{
			SourceID:  key,
			DirectURL: record.DirectURL,
			ProxyURL:  relay.ProxyURL(cacheID),
			CacheID:   cacheID,
			Title:     record.Title,
			Uploader:  record.Uploader,
			Duration:  record.DurationSeconds,
			Thumbnail: record.ThumbnailURL,
			Ext:       record.Ext,
			Resolver:  record.Resolver,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s: %w", shared.ErrResolutionFailed, key, lastErr)
}

func (e *Engine) attempt(ctx context.Context, r services.Resolver, key string, delegated bool) (*models.MediaRecord, error) {
	start := e.now()
	record, err := r.Resolve(ctx, key)
	if err == nil {
		err = record.Validate()
	}
	elapsed := e.now().Sub(start)

	a := models.ResolveAttempt{
		ID:        shared.GenerateID(),
		SourceID:  key,
		Resolver:  r.Name(),
		Success:   err == nil,
		Duration:  elapsed,
		ElapsedMS: elapsed.Milliseconds(),
		Timestamp: start,
	}
	if err != nil {
		a.Error = err.Error()
	}
	e.attempts.Record(a)
	if e.observer != nil {
		e.observer.ObserveResolve(r.Name(), err == nil, elapsed)
	}

	switch {
	case err == nil:
		e.logger.Info("resolved", "source", key, "resolver", r.Name(), "elapsed", elapsed)
		if record.Resolver == "" {
			record.Resolver = r.Name()
		}
	case delegated:
		e.logger.Warn("delegate failed, falling back", "source", key, "error", err, "elapsed", elapsed)
	case errors.Is(err, shared.ErrTrackNotFound):
		e.logger.Info("source not found", "source", key, "resolver", r.Name())
	default:
		e.logger.Error("resolve failed", "source", key, "resolver", r.Name(), "error", err, "elapsed", elapsed)
	}
	return record, err
}
