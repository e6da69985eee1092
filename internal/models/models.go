package models

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Platform identifies where a source reference points.
type Platform string

const (
	PlatformYouTube Platform = "youtube"
	PlatformSpotify Platform = "spotify"
)

// SourceRef is a normalised reference to a single playable item.
type SourceRef struct {
	Platform Platform
	ID       string
}

func (s SourceRef) String() string {
	return string(s.Platform) + ":" + s.ID
}

// Key is the form handed to resolvers: the bare ID for YouTube, a spotify:track URI for Spotify.
func (s SourceRef) Key() string {
	if s.Platform == PlatformSpotify {
		return "spotify:track:" + s.ID
	}
	return s.ID
}

// MediaRecord is what a resolver returns for one source.
type MediaRecord struct {
	SourceID        string
	Title           string
	Uploader        string
	ThumbnailURL    string
	DurationSeconds int
	Ext             string
	DirectURL       string
	Resolver        string // Name of the resolver that produced the record
}

// Validate checks that the record carries a usable direct URL.
func (m *MediaRecord) Validate() error {
	if m == nil {
		return errors.New("nil media record")
	}
	if m.DirectURL == "" {
		return errors.New("media record has no direct URL")
	}
	u, err := url.Parse(m.DirectURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("media record direct URL is not an absolute http(s) URL: %q", m.DirectURL)
	}
	return nil
}

// StreamResponse is the JSON envelope returned by the stream endpoints.
type StreamResponse struct {
	SourceID  string `json:"sourceId"`
	DirectURL string `json:"directUrl"`
	ProxyURL  string `json:"proxyUrl"`
	CacheID   string `json:"cacheId"`
	Title     string `json:"title"`
	Uploader  string `json:"uploader"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	Ext       string `json:"ext,omitempty"`
	Resolver  string `json:"resolver,omitempty"`
}

// SearchResult is one YouTube search hit.
type SearchResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	Duration  int    `json:"duration"`
	Thumbnail string `json:"thumbnail"`
	URL       string `json:"url"`
}

// ResolveAttempt records the outcome of one resolver call.
type ResolveAttempt struct {
	ID        string        `json:"id"`
	SourceID  string        `json:"sourceId"`
	Resolver  string        `json:"resolver"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"-"`
	ElapsedMS int64         `json:"elapsedMs"`
	Timestamp time.Time     `json:"timestamp"`
}
