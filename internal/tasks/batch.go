package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/ytrelay/internal/models"
	"golang.org/x/time/rate"
)

const (
	defaultBatchWorkers = 3
	maxBatchWorkers     = 10
	defaultBatchRate    = 5.0
)

// BatchOpts configures [Engine.StreamMany].
type BatchOpts struct {
	NumWorkers int     // Concurrent resolutions (default: 3, max: 10)
	RateLimit  float64 // Resolutions started per second (default: 5)
}

// BatchItem is the outcome for one source of a batch.
type BatchItem struct {
	Index    int                    `json:"index"`
	Source   string                 `json:"source"`
	Response *models.StreamResponse `json:"response,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Err      error                  `json:"-"`
}

// BatchResult aggregates a batch run. Items keep the input order.
type BatchResult struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

type batchJob struct {
	index  int
	source string
}

// StreamMany resolves several sources with a worker pool, starting at most
// opts.RateLimit resolutions per second. Individual failures are reported per item; the
// returned error is only set when ctx ends before every source was attempted.
func (e *Engine) StreamMany(ctx context.Context, progress chan<- ProgressUpdate, sources []string, opts BatchOpts) (*BatchResult, error) {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = defaultBatchWorkers
	}
	opts.NumWorkers = min(opts.NumWorkers, maxBatchWorkers)
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultBatchRate
	}

	total := len(sources)
	result := &BatchResult{Items: make([]BatchItem, total)}
	for i, src := range sources {
		result.Items[i] = BatchItem{Index: i, Source: src}
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan batchJob)
	done := make(chan BatchItem, total)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				resp, err := e.Stream(ctx, job.source)
				item := BatchItem{Index: job.index, Source: job.source, Response: resp, Err: err}
				if err != nil {
					item.Error = err.Error()
				}
				done <- item
			}
		}()
	}

	sendProgress(progress, queueUpdate(total))

	var feedErr error
	go func() {
		defer close(jobs)
		for i, src := range sources {
			if err := limiter.Wait(ctx); err != nil {
				feedErr = fmt.Errorf("batch interrupted after %d of %d: %w", i, total, err)
				return
			}
			sendProgress(progress, resolvingUpdate(i+1, total, src))
			select {
			case jobs <- batchJob{index: i, source: src}:
			case <-ctx.Done():
				feedErr = fmt.Errorf("batch interrupted after %d of %d: %w", i, total, ctx.Err())
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(done)
	}()

	completed := 0
	for item := range done {
		completed++
		result.Items[item.Index] = item
		if item.Err == nil {
			result.Succeeded++
			sendProgress(progress, resolvedUpdate(completed, total, item.Response))
		} else {
			result.Failed++
			sendProgress(progress, failedUpdate(completed, total, item.Source, item.Err))
		}
	}

	if feedErr != nil {
		for i := range result.Items {
			if it := &result.Items[i]; it.Response == nil && it.Err == nil {
				it.Err = ctx.Err()
				it.Error = "not attempted"
				result.Failed++
			}
		}
	}
	return result, feedErr
}
