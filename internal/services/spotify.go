// Spotify track resolution through YouTube
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	spotifySearchLimit = 5
	spotifyMaxAttempts = 3

	// DefaultSpotifyTimeout bounds one Spotify resolution, lookup and YouTube match included.
	DefaultSpotifyTimeout = 30 * time.Second
)

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	Explicit    bool            `json:"explicit"`
	ExternalIDs externalIDs     `json:"external_ids"`
	URI         string          `json:"uri"`
}

// ArtistNames joins the track's artists with ", ".
func (t SpotifyTrack) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// SearchQuery is the free-text query used to find the track on YouTube.
func (t SpotifyTrack) SearchQuery() string {
	if len(t.Artists) == 0 {
		return t.Name
	}
	return t.Name + " " + t.Artists[0].Name
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyOptions configures a [SpotifyResolver].
type SpotifyOptions struct {
	ClientID     string
	ClientSecret string
	TokenURL     string // defaults to the Spotify accounts service
	BaseURL      string // defaults to the Spotify Web API
	HTTPClient   *http.Client
	Timeout      time.Duration // defaults to DefaultSpotifyTimeout
	Searcher     Searcher
	YouTube      Resolver
	Logger       *log.Logger
}

// SpotifyResolver looks a track up on Spotify, finds the matching YouTube video and resolves
// that. Title, artists and album art come from Spotify.
//
// Authentication uses the client-credentials flow; tokens are cached and refreshed by [oauth2].
type SpotifyResolver struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	searcher   Searcher
	youtube    Resolver
	logger     *log.Logger
}

// NewSpotifyResolver creates a new Spotify resolver with the given app credentials.
func NewSpotifyResolver(opts SpotifyOptions) (*SpotifyResolver, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret", shared.ErrMissingCredentials)
	}
	if opts.Searcher == nil || opts.YouTube == nil {
		return nil, fmt.Errorf("%w: spotify resolver needs a searcher and a youtube resolver", shared.ErrInvalidConfig)
	}

	tokenURL := opts.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyTokenURL
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}

	config := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     tokenURL,
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultSpotifyTimeout
	}

	// Token fetches run on the client's own context, so only the client timeout bounds them.
	client := &http.Client{}
	if opts.HTTPClient != nil {
		c := *opts.HTTPClient
		client = &c
	}
	if client.Timeout <= 0 || client.Timeout > timeout {
		client.Timeout = timeout
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &SpotifyResolver{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: config.Client(ctx),
		timeout:    timeout,
		searcher:   opts.Searcher,
		youtube:    opts.YouTube,
		logger:     logger,
	}, nil
}

func (s *SpotifyResolver) Name() string {
	return "spotify"
}

// doRequest performs an authenticated GET against the Spotify API.
func (s *SpotifyResolver) doRequest(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: spotify token: %v", shared.ErrMissingCredentials, err)
		}
		return fmt.Errorf("%w: spotify request failed: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: spotify status %d", shared.ErrTrackNotFound, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: failed to decode spotify response: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// Track retrieves a single track by ID.
func (s *SpotifyResolver) Track(ctx context.Context, trackID string) (*SpotifyTrack, error) {
	var track SpotifyTrack
	if err := s.doRequest(ctx, "/tracks/"+url.PathEscape(trackID), &track); err != nil {
		return nil, err
	}
	return &track, nil
}

// Resolve fetches the Spotify track, searches YouTube for it and resolves the hits whose
// duration is closest to the track's, stopping at the first that succeeds. The whole
// resolution is bounded by the configured timeout.
func (s *SpotifyResolver) Resolve(ctx context.Context, trackID string) (*models.MediaRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	track, err := s.Track(ctx, trackID)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: spotify track %s: %v", shared.ErrTimeout, trackID, err)
		}
		return nil, err
	}

	hits, err := s.searcher.Search(ctx, track.SearchQuery(), spotifySearchLimit)
	if err != nil {
		return nil, fmt.Errorf("youtube search for %q: %w", track.SearchQuery(), err)
	}
	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: no youtube match for %q", shared.ErrTrackNotFound, track.SearchQuery())
	}

	rankByDuration(hits, track.DurationMS/1000)

	var errs []error
	for _, hit := range hits[:min(len(hits), spotifyMaxAttempts)] {
		record, err := s.youtube.Resolve(ctx, hit.ID)
		if err != nil {
			s.logger.Debug("spotify candidate failed", "track", trackID, "video", hit.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		return s.merge(track, record), nil
	}
	return nil, errors.Join(errs...)
}

func (s *SpotifyResolver) merge(track *SpotifyTrack, record *models.MediaRecord) *models.MediaRecord {
	merged := *record
	merged.SourceID = track.ID
	merged.Title = track.Name
	if artists := track.ArtistNames(); artists != "" {
		merged.Uploader = artists
	}
	if len(track.Album.Images) > 0 {
		merged.ThumbnailURL = track.Album.Images[0].URL
	}
	if track.DurationMS > 0 {
		merged.DurationSeconds = track.DurationMS / 1000
	}
	merged.Resolver = s.Name() + "+" + record.Resolver
	return &merged
}

// rankByDuration orders hits by distance from the target length in seconds. Hits without a
// known duration go last. The sort is stable so search order breaks ties.
func rankByDuration(hits []models.SearchResult, target int) {
	distance := func(h models.SearchResult) int {
		if h.Duration <= 0 {
			return 1 << 30
		}
		d := h.Duration - target
		if d < 0 {
			return -d
		}
		return d
	}
	slices.SortStableFunc(hits, func(a, b models.SearchResult) int {
		return distance(a) - distance(b)
	})
}
