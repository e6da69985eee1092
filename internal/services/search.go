package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/shared"
	"github.com/raitonoberu/ytsearch"
)

const (
	DefaultSearchLimit = 5
	MaxSearchLimit     = 20
)

// ClampSearchLimit maps a requested limit onto [1, MaxSearchLimit], using
// [DefaultSearchLimit] for non-positive values.
func ClampSearchLimit(limit int) int {
	if limit <= 0 {
		return DefaultSearchLimit
	}
	return min(limit, MaxSearchLimit)
}

// searchVideo is the subset of a search hit the searcher needs.
type searchVideo struct {
	ID        string
	Title     string
	Channel   string
	Duration  int
	Thumbnail string
}

// YouTubeSearcher implements [Searcher] with the YouTube web search endpoint.
type YouTubeSearcher struct {
	fetch func(query string) ([]searchVideo, error)
}

func NewYouTubeSearcher() *YouTubeSearcher {
	return &YouTubeSearcher{fetch: fetchVideos}
}

func fetchVideos(query string) ([]searchVideo, error) {
	results, err := ytsearch.VideoSearch(query).Next()
	if err != nil {
		return nil, err
	}

	videos := make([]searchVideo, 0, len(results.Videos))
	for _, v := range results.Videos {
		thumbnail := ""
		if len(v.Thumbnails) > 0 {
			thumbnail = v.Thumbnails[0].URL
		}
		videos = append(videos, searchVideo{
			ID:        v.ID,
			Title:     v.Title,
			Channel:   v.Channel.Title,
			Duration:  v.Duration,
			Thumbnail: thumbnail,
		})
	}
	return videos, nil
}

// Search returns at most limit hits for query. The underlying client does not take a
// context, so cancellation only stops the wait.
func (s *YouTubeSearcher) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrMissingArgument)
	}
	limit = ClampSearchLimit(limit)

	type outcome struct {
		videos []searchVideo
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		videos, err := s.fetch(query)
		done <- outcome{videos, err}
	}()

	var out outcome
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: search %q: %v", shared.ErrTimeout, query, ctx.Err())
	case out = <-done:
	}
	if out.err != nil {
		return nil, fmt.Errorf("%w: search %q: %v", shared.ErrUpstream, query, out.err)
	}

	results := make([]models.SearchResult, 0, min(limit, len(out.videos)))
	for _, v := range out.videos {
		if len(results) == limit {
			break
		}
		if v.ID == "" {
			continue
		}
		thumb := v.Thumbnail
		if thumb == "" {
			thumb = DefaultThumbnail(v.ID)
		}
		results = append(results, models.SearchResult{
			ID:        v.ID,
			Title:     v.Title,
			Channel:   v.Channel,
			Duration:  v.Duration,
			Thumbnail: thumb,
			URL:       WatchURL(v.ID),
		})
	}
	return results, nil
}
