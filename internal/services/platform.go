package services

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/shared"
)

// MinSourceIDLength is the shortest identifier accepted after normalisation.
const MinSourceIDLength = 10

var (
	youtubeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)
	spotifyIDPattern = regexp.MustCompile(`^[A-Za-z0-9]{10,}$`)
)

// ParseSource normalises a raw source reference into a [models.SourceRef].
//
// Accepted forms:
//   - a bare YouTube video ID (e.g. dQw4w9WgXcQ)
//   - youtube.com/watch?v=, music.youtube.com/watch?v=, youtube.com/shorts/, youtube.com/embed/ and youtu.be/ URLs
//   - spotify:track:<id>
//   - open.spotify.com/track/<id> (with or without an intl-xx path prefix)
func ParseSource(raw string) (models.SourceRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.SourceRef{}, fmt.Errorf("%w: empty source ID", shared.ErrInvalidInput)
	}

	if rest, ok := strings.CutPrefix(raw, "spotify:track:"); ok {
		return spotifyRef(rest)
	}

	if !strings.Contains(raw, "/") {
		return youtubeRef(raw)
	}

	target := raw
	if !strings.Contains(target, "://") {
		target = "https://" + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return models.SourceRef{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		if v := u.Query().Get("v"); v != "" {
			return youtubeRef(v)
		}
		if len(segments) >= 2 && (segments[0] == "shorts" || segments[0] == "embed" || segments[0] == "live") {
			return youtubeRef(segments[1])
		}
	case "youtu.be":
		if len(segments) >= 1 {
			return youtubeRef(segments[0])
		}
	case "open.spotify.com":
		if len(segments) >= 1 && strings.HasPrefix(segments[0], "intl-") {
			segments = segments[1:]
		}
		if len(segments) >= 2 && segments[0] == "track" {
			return spotifyRef(segments[1])
		}
	}

	return models.SourceRef{}, fmt.Errorf("%w: unrecognised source %q", shared.ErrInvalidInput, raw)
}

func youtubeRef(id string) (models.SourceRef, error) {
	if len(id) < MinSourceIDLength || !youtubeIDPattern.MatchString(id) {
		return models.SourceRef{}, fmt.Errorf("%w: invalid video ID %q", shared.ErrInvalidInput, id)
	}
	return models.SourceRef{Platform: models.PlatformYouTube, ID: id}, nil
}

func spotifyRef(id string) (models.SourceRef, error) {
	if !spotifyIDPattern.MatchString(id) {
		return models.SourceRef{}, fmt.Errorf("%w: invalid spotify track ID %q", shared.ErrInvalidInput, id)
	}
	return models.SourceRef{Platform: models.PlatformSpotify, ID: id}, nil
}

// PlatformResolver parses the source reference and dispatches to the resolver registered
// for its platform.
type PlatformResolver struct {
	youtube Resolver
	spotify Resolver
}

// NewPlatformResolver creates a dispatcher. spotify may be nil, in which case Spotify
// references fail with [shared.ErrMissingCredentials].
func NewPlatformResolver(youtube, spotify Resolver) *PlatformResolver {
	return &PlatformResolver{youtube: youtube, spotify: spotify}
}

func (p *PlatformResolver) Name() string { return p.youtube.Name() }

// Resolve normalises sourceID and resolves it on the matching platform.
func (p *PlatformResolver) Resolve(ctx context.Context, sourceID string) (*models.MediaRecord, error) {
	ref, err := ParseSource(sourceID)
	if err != nil {
		return nil, err
	}

	switch ref.Platform {
	case models.PlatformSpotify:
		if p.spotify == nil {
			return nil, fmt.Errorf("%w: spotify resolver not configured", shared.ErrMissingCredentials)
		}
		return p.spotify.Resolve(ctx, ref.ID)
	default:
		return p.youtube.Resolve(ctx, ref.ID)
	}
}
