package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/shared"
	"golang.org/x/sync/semaphore"
)

// ytdlpFormat prefers a progressive mp4 served over plain HTTP so the relay can forward ranges.
const ytdlpFormat = "best[ext=mp4][protocol^=http]/best[protocol^=http]"

const (
	defaultYTDLPTimeout       = 35 * time.Second
	defaultYTDLPMaxConcurrent = 2
)

// notFoundMarkers are yt-dlp stderr fragments that mean the video cannot be played at all.
var notFoundMarkers = []string{
	"Video unavailable",
	"Private video",
	"This video is not available",
	"This video has been removed",
	"is not a valid URL",
	"Incomplete YouTube ID",
}

// CommandRunner runs name with args and returns its stdout and stderr.
type CommandRunner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

// ExecRunner runs commands with [exec.CommandContext].
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// YTDLPOptions configures a [YTDLPResolver].
type YTDLPOptions struct {
	Path          string
	Timeout       time.Duration
	MaxConcurrent int64
	CookiesFile   string
	ProxyURL      string
	UseNode       bool // pass --js-runtimes node
	Run           CommandRunner
	Logger        *log.Logger
}

// YTDLPResolver resolves YouTube IDs by running yt-dlp.
type YTDLPResolver struct {
	path        string
	timeout     time.Duration
	sem         *semaphore.Weighted
	cookiesFile string
	proxyURL    string
	useNode     bool
	run         CommandRunner
	logger      *log.Logger
}

// NewYTDLPResolver creates a [YTDLPResolver].
func NewYTDLPResolver(opts YTDLPOptions) *YTDLPResolver {
	if opts.Path == "" {
		opts.Path = "yt-dlp"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultYTDLPTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultYTDLPMaxConcurrent
	}
	if opts.Run == nil {
		opts.Run = ExecRunner
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	return &YTDLPResolver{
		path:        opts.Path,
		timeout:     opts.Timeout,
		sem:         semaphore.NewWeighted(opts.MaxConcurrent),
		cookiesFile: opts.CookiesFile,
		proxyURL:    opts.ProxyURL,
		useNode:     opts.UseNode,
		run:         opts.Run,
		logger:      opts.Logger,
	}
}

// NodeAvailable reports whether a node binary is on PATH.
func NodeAvailable() bool {
	_, err := exec.LookPath("node")
	return err == nil
}

func (y *YTDLPResolver) Name() string { return "yt-dlp" }

// Args returns the yt-dlp arguments used to resolve videoID.
func (y *YTDLPResolver) Args(videoID string) []string {
	args := []string{
		WatchURL(videoID),
		"--no-cache-dir",
		"--no-check-certificate",
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		"-f", ytdlpFormat,
	}
	if y.useNode {
		args = append(args, "--js-runtimes", "node")
	}
	if y.cookiesFile != "" {
		args = append(args, "--cookies", y.cookiesFile)
	}
	if y.proxyURL != "" {
		args = append(args, "--proxy", y.proxyURL)
	}
	return args
}

type ytdlpFormatInfo struct {
	URL      string `json:"url"`
	Ext      string `json:"ext"`
	Protocol string `json:"protocol"`
}

type ytdlpOutput struct {
	ID               string            `json:"id"`
	URL              string            `json:"url"`
	Title            string            `json:"title"`
	Thumbnail        string            `json:"thumbnail"`
	Duration         float64           `json:"duration"`
	Uploader         string            `json:"uploader"`
	Channel          string            `json:"channel"`
	Ext              string            `json:"ext"`
	RequestedFormats []ytdlpFormatInfo `json:"requested_formats"`
}

// Resolve runs yt-dlp for videoID, waiting for a free process slot first.
func (y *YTDLPResolver) Resolve(ctx context.Context, videoID string) (*models.MediaRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, y.timeout)
	defer cancel()

	if err := y.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: waiting for yt-dlp slot: %v", shared.ErrTimeout, err)
	}
	defer y.sem.Release(1)

	start := time.Now()
	stdout, stderr, err := y.run(ctx, y.path, y.Args(videoID)...)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			y.logger.Warn("yt-dlp timed out", "video_id", videoID, "elapsed", elapsed)
			return nil, fmt.Errorf("%w: yt-dlp after %v", shared.ErrTimeout, y.timeout)
		}
		msg := lastLine(stderr)
		y.logger.Warn("yt-dlp failed", "video_id", videoID, "elapsed", elapsed, "stderr", msg)
		if isNotFound(stderr) {
			return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, msg)
		}
		return nil, fmt.Errorf("yt-dlp: %w: %s", err, msg)
	}

	record, err := parseYTDLPOutput(videoID, stdout)
	if err != nil {
		return nil, err
	}
	record.Resolver = y.Name()

	y.logger.Debug("yt-dlp resolved", "video_id", videoID, "elapsed", elapsed, "ext", record.Ext)
	return record, nil
}

// Version runs yt-dlp --version. Used to warm the interpreter at startup.
func (y *YTDLPResolver) Version(ctx context.Context) (string, error) {
	stdout, stderr, err := y.run(ctx, y.path, "--version")
	if err != nil {
		return "", fmt.Errorf("yt-dlp --version: %w: %s", err, lastLine(stderr))
	}
	return strings.TrimSpace(string(stdout)), nil
}

func parseYTDLPOutput(videoID string, data []byte) (*models.MediaRecord, error) {
	var out ytdlpOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode yt-dlp output: %w", err)
	}

	direct := out.URL
	if direct == "" {
		for _, f := range out.RequestedFormats {
			if f.URL != "" && strings.HasPrefix(f.Protocol, "http") {
				direct = f.URL
				break
			}
		}
	}
	if direct == "" {
		return nil, fmt.Errorf("%w: yt-dlp returned no playable URL", shared.ErrTrackNotFound)
	}

	uploader := out.Uploader
	if uploader == "" {
		uploader = out.Channel
	}
	thumbnail := out.Thumbnail
	if thumbnail == "" {
		thumbnail = DefaultThumbnail(videoID)
	}

	return &models.MediaRecord{
		SourceID:        videoID,
		Title:           out.Title,
		Uploader:        uploader,
		ThumbnailURL:    thumbnail,
		DurationSeconds: int(out.Duration),
		Ext:             out.Ext,
		DirectURL:       direct,
	}, nil
}

func isNotFound(stderr []byte) bool {
	s := string(stderr)
	for _, marker := range notFoundMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// lastLine returns the last non-empty stderr line, which is where yt-dlp prints its ERROR.
func lastLine(b []byte) string {
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return shared.Truncate(l, 300)
		}
	}
	return ""
}
