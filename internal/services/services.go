package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/ytrelay/internal/models"
)

const (
	youtubeWatchURL = "https://www.youtube.com/watch?v="
	youtubeThumbURL = "https://img.youtube.com/vi/%s/maxresdefault.jpg"
)

// Resolver turns a source ID into a playable [models.MediaRecord].
type Resolver interface {
	// Resolve returns a record whose DirectURL is ready to be relayed.
	Resolve(ctx context.Context, sourceID string) (*models.MediaRecord, error)

	// Name identifies the resolver in logs and responses.
	Name() string
}

// Searcher finds YouTube videos for a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}

// ResolverFunc adapts a function to [Resolver].
type ResolverFunc struct {
	ResolverName string
	Fn           func(ctx context.Context, sourceID string) (*models.MediaRecord, error)
}

func (f ResolverFunc) Resolve(ctx context.Context, sourceID string) (*models.MediaRecord, error) {
	return f.Fn(ctx, sourceID)
}

func (f ResolverFunc) Name() string { return f.ResolverName }

// WatchURL returns the canonical watch page for a YouTube video ID.
func WatchURL(videoID string) string {
	return youtubeWatchURL + videoID
}

// DefaultThumbnail returns the max-resolution still for a YouTube video ID.
func DefaultThumbnail(videoID string) string {
	return fmt.Sprintf(youtubeThumbURL, videoID)
}
