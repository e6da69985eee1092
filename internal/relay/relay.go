// Package relay streams upstream media bytes to clients on behalf of a short cache ID.
//
// A request names its target with ?id=<cacheId> or, for older clients, ?url=<base64>.
// The client's Range header is forwarded verbatim and the upstream body is copied
// as it arrives. Headers are committed before the first byte is written, so failures
// after that point end the response without a JSON body.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytrelay/internal/shared"
)

const (
	// PlayPath is the route clients fetch relayed bytes from.
	PlayPath = "/stream/play"

	DefaultUserAgent = "Mozilla/5.0"
	cacheControl     = "public, max-age=3600"
	bufferSize       = 32 * 1024
)

// copiedHeaders are passed from upstream to the client on success.
var copiedHeaders = []string{"Content-Type", "Content-Length", "Content-Range", "Accept-Ranges", "Last-Modified", "ETag"}

// Lookup resolves a cache ID to its upstream URL.
type Lookup interface {
	Get(key string) (string, bool)
}

// Observer receives one call per finished relay.
type Observer interface {
	ObserveRelay(outcome string, status int, bytes int64, elapsed time.Duration)
}

// Relay outcomes reported to [Observer].
const (
	OutcomeOK         = "ok"
	OutcomeNotFound   = "not_found"
	OutcomeBadRequest = "bad_request"
	OutcomeUpstream   = "upstream_error"
	OutcomeFailed     = "proxy_failed"
	OutcomeAborted    = "aborted"
)

// Options configures a [Handler].
type Options struct {
	Cache     Lookup
	Client    *http.Client
	UserAgent string
	Logger    *log.Logger
	Observer  Observer
}

// Handler implements the relay endpoint.
type Handler struct {
	cache     Lookup
	client    *http.Client
	userAgent string
	logger    *log.Logger
	observer  Observer
}

// NewHandler creates a relay [Handler].
func NewHandler(opts Options) *Handler {
	if opts.Client == nil {
		opts.Client = NewUpstreamClient(0, 0)
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	return &Handler{
		cache:     opts.Cache,
		client:    opts.Client,
		userAgent: opts.UserAgent,
		logger:    opts.Logger,
		observer:  opts.Observer,
	}
}

// Routes returns the paths this handler serves.
func (h *Handler) Routes() []string {
	return []string{"GET " + PlayPath}
}

// ProxyURL returns the relative relay URL for a cache ID.
func ProxyURL(cacheID string) string {
	return PlayPath + "?id=" + cacheID
}

// ServeHTTP relays a single upstream response.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	target, status, err := h.target(r)
	if err != nil {
		outcome := OutcomeBadRequest
		if status == http.StatusNotFound {
			outcome = OutcomeNotFound
		}
		h.logger.Debug("relay rejected", "status", status, "error", err)
		shared.WriteError(w, status, errorMessage(err))
		h.observe(outcome, status, 0, start)
		return
	}

	n, status, err := h.relay(w, r, target)
	switch {
	case err == nil:
		h.logger.Debug("relay finished", "status", status, "bytes", n, "elapsed", time.Since(start))
		h.observe(OutcomeOK, status, n, start)
	case errors.Is(err, shared.ErrUpstream):
		h.logger.Warn("upstream rejected relay", "status", status, "url", shared.Truncate(target, 80))
		h.observe(OutcomeUpstream, status, 0, start)
	case errors.Is(err, shared.ErrProxyFailed):
		h.logger.Error("relay failed", "error", err, "url", shared.Truncate(target, 80))
		h.observe(OutcomeFailed, http.StatusInternalServerError, 0, start)
	default:
		h.logger.Debug("relay aborted", "bytes", n, "error", err)
		h.observe(OutcomeAborted, status, n, start)
	}
}

// target picks the upstream URL from the query, preferring id over the legacy url parameter.
func (h *Handler) target(r *http.Request) (string, int, error) {
	q := r.URL.Query()

	if id := q.Get("id"); id != "" {
		if h.cache != nil {
			if u, ok := h.cache.Get(id); ok {
				return u, http.StatusOK, nil
			}
		}
		return "", http.StatusNotFound, fmt.Errorf("%w: %s", shared.ErrCacheIDNotFound, id)
	}

	if raw := q.Get("url"); raw != "" {
		u, err := DecodeLegacyURL(raw)
		if err != nil {
			return "", http.StatusBadRequest, err
		}
		return u, http.StatusOK, nil
	}

	return "", http.StatusBadRequest, fmt.Errorf("%w: missing id or url parameter", shared.ErrMissingArgument)
}

// relay performs the single upstream attempt and copies the body.
//
// Errors returned after headers were written carry neither [shared.ErrUpstream] nor [shared.ErrProxyFailed].
func (h *Handler) relay(w http.ResponseWriter, r *http.Request, target string) (int64, int, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		err = fmt.Errorf("%w: %v", shared.ErrProxyFailed, err)
		shared.WriteError(w, http.StatusInternalServerError, errorMessage(err))
		return 0, http.StatusInternalServerError, err
	}
	req.Header.Set("User-Agent", h.userAgent)
	if rng := r.Header.Get("Range"); rng != "" {
		req.Header.Set("Range", rng)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		if r.Context().Err() != nil {
			return 0, 0, r.Context().Err()
		}
		err = fmt.Errorf("%w: %v", shared.ErrProxyFailed, err)
		shared.WriteError(w, http.StatusInternalServerError, errorMessage(err))
		return 0, http.StatusInternalServerError, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		shared.WriteJSON(w, http.StatusBadGateway, shared.ErrorBody{
			Error:  "Upstream returned status " + strconv.Itoa(resp.StatusCode),
			Status: resp.StatusCode,
		})
		return 0, resp.StatusCode, fmt.Errorf("%w: status %d", shared.ErrUpstream, resp.StatusCode)
	}

	header := w.Header()
	for _, k := range copiedHeaders {
		if v := resp.Header.Get(k); v != "" {
			header.Set(k, v)
		}
	}
	header.Set("Cache-Control", cacheControl)
	header.Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(resp.StatusCode)

	n, err := stream(r.Context(), w, resp.Body)
	return n, resp.StatusCode, err
}

// stream copies src to w, flushing after every chunk so bytes reach the client as they arrive.
func stream(ctx context.Context, w http.ResponseWriter, src io.Reader) (int64, error) {
	rc := http.NewResponseController(w)
	buf := make([]byte, bufferSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		nr, readErr := src.Read(buf)
		if nr > 0 {
			nw, writeErr := w.Write(buf[:nr])
			written += int64(nw)
			if writeErr != nil {
				return written, writeErr
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return written, err
			}
		}

		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}

func (h *Handler) observe(outcome string, status int, n int64, start time.Time) {
	if h.observer != nil {
		h.observer.ObserveRelay(outcome, status, n, time.Since(start))
	}
}

// errorMessage renders the client-visible message for relay failures.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrCacheIDNotFound):
		return "Cache ID not found: " + detail(err, shared.ErrCacheIDNotFound)
	case errors.Is(err, shared.ErrDecode):
		return "Decode error: " + detail(err, shared.ErrDecode)
	case errors.Is(err, shared.ErrProxyFailed):
		return "Proxy failed: " + detail(err, shared.ErrProxyFailed)
	case errors.Is(err, shared.ErrMissingArgument):
		return "Missing id or url parameter"
	default:
		return err.Error()
	}
}

// detail strips the "<sentinel>: " prefix added when wrapping.
func detail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
