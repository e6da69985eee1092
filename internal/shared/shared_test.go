package shared

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
)

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		name    string
		seconds int
		want    string
	}{
		{name: "live", seconds: 0, want: "LIVE"},
		{name: "seconds only", seconds: 7, want: "0:07"},
		{name: "minutes", seconds: 213, want: "3:33"},
		{name: "hours", seconds: 3725, want: "1:02:05"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.seconds); got != tt.want {
				t.Errorf("FormatDuration(%d) = %v, want %v", tt.seconds, got, tt.want)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("https://cdn.example/video.mp4", 11); got != "https://cdn..." {
		t.Errorf("Truncate() = %v", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %v", got)
	}
}

func TestSetLogLevel(t *testing.T) {
	logger := NewLogger(&bytes.Buffer{})

	t.Run("valid level", func(t *testing.T) {
		if err := SetLogLevel(logger, "DEBUG"); err != nil {
			t.Fatalf("SetLogLevel() error = %v", err)
		}
		if logger.GetLevel() != log.DebugLevel {
			t.Errorf("expected debug level, got %v", logger.GetLevel())
		}
	})

	t.Run("empty level is a no-op", func(t *testing.T) {
		if err := SetLogLevel(logger, ""); err != nil {
			t.Errorf("SetLogLevel() error = %v", err)
		}
	})

	t.Run("unknown level", func(t *testing.T) {
		if err := SetLogLevel(logger, "loud"); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestMarshalJSON(t *testing.T) {
	data := map[string]int{"a": 1}

	compact, err := MarshalJSON(data, false)
	if err != nil || string(compact) != `{"a":1}` {
		t.Errorf("MarshalJSON(compact) = %s, %v", compact, err)
	}

	pretty, err := MarshalJSON(data, true)
	if err != nil || string(pretty) != "{\n  \"a\": 1\n}" {
		t.Errorf("MarshalJSON(pretty) = %s, %v", pretty, err)
	}
}

func TestWriteJSON(t *testing.T) {
	t.Run("does not escape query separators", func(t *testing.T) {
		rec := httptest.NewRecorder()
		if err := WriteJSON(rec, http.StatusCreated, map[string]string{"url": "https://a.example/v?x=1&y=2"}); err != nil {
			t.Fatalf("WriteJSON() error = %v", err)
		}
		if rec.Code != http.StatusCreated {
			t.Errorf("status = %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if got := rec.Body.String(); got != "{\"url\":\"https://a.example/v?x=1&y=2\"}\n" {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("error body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, http.StatusNotFound, "Cache ID not found: x")
		if got := rec.Body.String(); got != "{\"error\":\"Cache ID not found: x\"}\n" {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("unmarshalable", func(t *testing.T) {
		rec := httptest.NewRecorder()
		if err := WriteJSON(rec, http.StatusOK, make(chan int)); err == nil {
			t.Error("expected error")
		}
	})
}
