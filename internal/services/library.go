package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/shared"
	"github.com/kkdai/youtube/v2"
)

// LibraryResolver resolves YouTube IDs in-process with github.com/kkdai/youtube/v2.
type LibraryResolver struct {
	client  *youtube.Client
	timeout time.Duration
}

// NewLibraryResolver creates a [LibraryResolver]. A nil httpClient uses a client bounded by timeout.
func NewLibraryResolver(httpClient *http.Client, timeout time.Duration) *LibraryResolver {
	if timeout <= 0 {
		timeout = defaultYTDLPTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return &LibraryResolver{
		client:  &youtube.Client{HTTPClient: httpClient},
		timeout: timeout,
	}
}

func (l *LibraryResolver) Name() string { return "library" }

// Resolve fetches the video manifest and picks an mp4 format that carries audio.
func (l *LibraryResolver) Resolve(ctx context.Context, videoID string) (*models.MediaRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	video, err := l.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, libraryError(ctx, err)
	}

	format, err := pickFormat(video.Formats)
	if err != nil {
		return nil, err
	}

	direct, err := l.client.GetStreamURLContext(ctx, video, format)
	if err != nil {
		return nil, libraryError(ctx, err)
	}

	return &models.MediaRecord{
		SourceID:        videoID,
		Title:           video.Title,
		Uploader:        video.Author,
		ThumbnailURL:    largestThumbnail(video.Thumbnails, videoID),
		DurationSeconds: int(video.Duration.Seconds()),
		Ext:             extFromMime(format.MimeType),
		DirectURL:       direct,
		Resolver:        l.Name(),
	}, nil
}

// pickFormat prefers progressive mp4 with audio, then any format with audio.
func pickFormat(formats youtube.FormatList) (*youtube.Format, error) {
	withAudio := formats.WithAudioChannels()
	if mp4 := withAudio.Type("video/mp4"); len(mp4) > 0 {
		return &mp4[0], nil
	}
	if len(withAudio) > 0 {
		return &withAudio[0], nil
	}
	return nil, fmt.Errorf("%w: no format with audio", shared.ErrTrackNotFound)
}

func largestThumbnail(thumbs youtube.Thumbnails, videoID string) string {
	best := ""
	var bestWidth uint
	for _, t := range thumbs {
		if t.URL != "" && t.Width >= bestWidth {
			best, bestWidth = t.URL, t.Width
		}
	}
	if best == "" {
		return DefaultThumbnail(videoID)
	}
	return best
}

// extFromMime maps "video/mp4; codecs=..." to "mp4".
func extFromMime(mime string) string {
	base, _, _ := strings.Cut(mime, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(base), "/")
	if !ok {
		return ""
	}
	return sub
}

func libraryError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", shared.ErrTimeout, err)
	}

	switch {
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed),
		errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return fmt.Errorf("%w: %v", shared.ErrTrackNotFound, err)
	}

	var statusPtr *youtube.ErrPlayabiltyStatus
	var statusVal youtube.ErrPlayabiltyStatus
	if errors.As(err, &statusPtr) || errors.As(err, &statusVal) {
		return fmt.Errorf("%w: %v", shared.ErrTrackNotFound, err)
	}

	return fmt.Errorf("youtube: %w", err)
}
