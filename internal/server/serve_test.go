package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/ytrelay/internal/cache"
	"github.com/desertthunder/ytrelay/internal/metrics"
	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/relay"
	"github.com/desertthunder/ytrelay/internal/tasks"
	tu "github.com/desertthunder/ytrelay/internal/testing"
	"github.com/desertthunder/ytrelay/internal/web"
)

const payload = "0123456789abcdefghijklmnopqrstuvwxyz"

func newTestServer(t *testing.T) (*Server, *tu.MockResolver) {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/webm")
		io.WriteString(w, payload)
	}))
	t.Cleanup(upstream.Close)

	resolver := &tu.MockResolver{
		ResolverName: "yt-dlp",
		Record: &models.MediaRecord{
			Title:     "Never Gonna Give You Up",
			Uploader:  "Rick Astley",
			DirectURL: upstream.URL + "/videoplayback?itag=251&expire=1",
			Ext:       "webm",
		},
	}

	store := cache.New(cache.Options{})
	m := metrics.New()
	m.RegisterCache(store)

	engine, err := tasks.NewEngine(tasks.EngineOpts{Local: resolver, Cache: store, Observer: m, Logger: discard})
	if err != nil {
		t.Fatal(err)
	}
	page, err := web.NewHandler(web.PageData{Service: "ytrelay", Version: "test", SearchLimit: 5})
	if err != nil {
		t.Fatal(err)
	}

	srv := New(Options{
		API:      NewAPI(engine, &tu.MockSearcher{}, nil, nil, discard),
		Relay:    relay.NewHandler(relay.Options{Cache: store, Client: upstream.Client(), Observer: m, Logger: discard}),
		Web:      page,
		Metrics:  m.Handler(),
		Observer: m,
		Limiter:  NewClientLimiter(100, 100),
		Logger:   discard,
	})
	return srv, resolver
}

func TestServerEndToEnd(t *testing.T) {
	srv, resolver := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	t.Run("resolve then relay", func(t *testing.T) {
		resp, err := http.Post(ts.URL+"/stream/abc12345678", "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if resp.Header.Get(RequestIDHeader) == "" {
			t.Error("missing request id header")
		}

		var body models.StreamResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.SourceID != "abc12345678" || body.Resolver != "yt-dlp" || len(body.CacheID) != 12 {
			t.Fatalf("unexpected envelope %+v", body)
		}
		if body.ProxyURL != relay.ProxyURL(body.CacheID) {
			t.Errorf("proxyUrl = %q", body.ProxyURL)
		}
		if !strings.Contains(body.DirectURL, "&expire=1") {
			t.Errorf("directUrl escaped: %q", body.DirectURL)
		}

		play, err := http.Get(ts.URL + body.ProxyURL)
		if err != nil {
			t.Fatal(err)
		}
		defer play.Body.Close()

		got, _ := io.ReadAll(play.Body)
		if play.StatusCode != http.StatusOK || string(got) != payload {
			t.Errorf("relay status=%d body=%q", play.StatusCode, got)
		}
		if ct := play.Header.Get("Content-Type"); ct != "audio/webm" {
			t.Errorf("content-type = %q", ct)
		}
		if calls := resolver.Calls(); len(calls) != 1 {
			t.Errorf("resolver called %d times", len(calls))
		}
	})

	t.Run("unknown cache id", func(t *testing.T) {
		resp, err := http.Get(ts.URL + relay.ProxyURL("ffffffffffff"))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/nope")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(b), "Endpoint not found") {
			t.Errorf("status=%d body=%s", resp.StatusCode, b)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/stream/abc12345678", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Errorf("status = %d", resp.StatusCode)
		}
		if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
			t.Error("missing CORS header")
		}
	})

	t.Run("playground", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
			t.Errorf("status=%d content-type=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		for _, want := range []string{"ytrelay_resolve_total", "ytrelay_relay_bytes_total", "ytrelay_cache_entries"} {
			if !strings.Contains(string(b), want) {
				t.Errorf("metrics missing %s", want)
			}
		}
	})
}

func TestServerServe(t *testing.T) {
	srv, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
