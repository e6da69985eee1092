// Remote resolver client for another deployment of the stream API.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/shared"
)

const maxDelegateBody = 1 << 20

// DelegateResolver resolves sources by calling GET {baseURL}/api/stream/{id} on a remote service.
type DelegateResolver struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewDelegateResolver creates a [DelegateResolver]. Each call is bounded by timeout.
func NewDelegateResolver(baseURL string, client *http.Client, timeout time.Duration) *DelegateResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &DelegateResolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
		timeout:    timeout,
	}
}

func (d *DelegateResolver) Name() string { return "delegate" }

// BaseURL returns the configured remote base URL.
func (d *DelegateResolver) BaseURL() string { return d.baseURL }

// delegateResponse accepts both this service's envelope and the older snake_case shape.
type delegateResponse struct {
	DirectURL   string  `json:"directUrl"`
	OriginalURL string  `json:"original_url"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Uploader    string  `json:"uploader"`
	Duration    float64 `json:"duration"`
	Thumbnail   string  `json:"thumbnail"`
	Ext         string  `json:"ext"`
	Error       string  `json:"error"`
}

func (r delegateResponse) directURL() string {
	for _, u := range []string{r.DirectURL, r.OriginalURL, r.URL} {
		if u != "" {
			return u
		}
	}
	return ""
}

// Resolve asks the remote service for sourceID. Non-2xx responses, malformed bodies and
// bodies without a URL are all failures.
func (d *DelegateResolver) Resolve(ctx context.Context, sourceID string) (*models.MediaRecord, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	var body delegateResponse
	if err := d.doRequest(ctx, "/api/stream/"+url.PathEscape(sourceID), &body); err != nil {
		return nil, err
	}

	record := &models.MediaRecord{
		SourceID:        sourceID,
		Title:           body.Title,
		Uploader:        body.Uploader,
		ThumbnailURL:    body.Thumbnail,
		DurationSeconds: int(body.Duration),
		Ext:             body.Ext,
		DirectURL:       body.directURL(),
		Resolver:        d.Name(),
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: delegate: %v", shared.ErrAPIRequest, err)
	}
	return record, nil
}

// Ping checks GET {baseURL}/health.
func (d *DelegateResolver) Ping(ctx context.Context) error {
	return d.doRequest(ctx, "/health", nil)
}

func (d *DelegateResolver) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: delegate %s: %v", shared.ErrTimeout, endpoint, err)
		}
		return fmt.Errorf("%w: delegate request failed: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxDelegateBody)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp delegateResponse
		if err := json.NewDecoder(body).Decode(&errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("%w: delegate status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("%w: delegate status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode delegate response: %v", shared.ErrAPIRequest, err)
		}
	}

	return nil
}
