// package formatter renders resolve batches and search results as CSV, Markdown or plain text
package formatter

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/shared"
	"github.com/desertthunder/ytrelay/internal/tasks"
)

// Format names an export format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatText     Format = "text"
)

// ParseFormat accepts json, csv, md/markdown and txt/text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text", "":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidInput, s)
}

// BatchToCSV converts a batch to CSV with columns: Source, Status, SourceID, Title, Uploader, Duration, Resolver, CacheID, ProxyURL, Error
func BatchToCSV(batch *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Source", "Status", "SourceID", "Title", "Uploader", "Duration", "Resolver", "CacheID", "ProxyURL", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range batch.Items {
		record := []string{item.Source, "failed", "", "", "", "", "", "", "", item.Error}
		if r := item.Response; r != nil {
			record = []string{
				item.Source,
				"ok",
				r.SourceID,
				r.Title,
				r.Uploader,
				strconv.Itoa(r.Duration),
				r.Resolver,
				r.CacheID,
				r.ProxyURL,
				"",
			}
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// BatchToMarkdown renders a batch as a Markdown report. thumbs maps a source ID to a local
// image path; sources without an entry link the remote thumbnail.
func BatchToMarkdown(batch *tasks.BatchResult, thumbs map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Resolved streams\n\n")
	buf.WriteString(fmt.Sprintf("**Sources**: %d\n", len(batch.Items)))
	buf.WriteString(fmt.Sprintf("**Resolved**: %d\n", batch.Succeeded))
	buf.WriteString(fmt.Sprintf("**Failed**: %d\n\n", batch.Failed))

	buf.WriteString("## Streams\n\n")
	for i, item := range batch.Items {
		r := item.Response
		if r == nil {
			buf.WriteString(fmt.Sprintf("%d. `%s` failed: %s\n", i+1, item.Source, item.Error))
			continue
		}

		uploader := ""
		if r.Uploader != "" {
			uploader = fmt.Sprintf(" by %s", r.Uploader)
		}
		buf.WriteString(fmt.Sprintf("%d. %s%s [%s] via %s\n", i+1, r.Title, uploader, shared.FormatDuration(r.Duration), r.Resolver))

		thumb := r.Thumbnail
		if local, ok := thumbs[r.SourceID]; ok {
			thumb = local
		}
		if thumb != "" {
			buf.WriteString(fmt.Sprintf("   ![%s](%s)\n", r.SourceID, thumb))
		}
		buf.WriteString(fmt.Sprintf("   Proxy: `%s`\n", r.ProxyURL))
	}

	return buf.Bytes(), nil
}

// BatchToText renders a batch as plain text, one line per source.
func BatchToText(batch *tasks.BatchResult) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Resolved: %d/%d\n\n", batch.Succeeded, len(batch.Items)))

	for i, item := range batch.Items {
		if r := item.Response; r != nil {
			buf.WriteString(fmt.Sprintf("%d. %s [%s] %s\n", i+1, r.Title, shared.FormatDuration(r.Duration), r.ProxyURL))
		} else {
			buf.WriteString(fmt.Sprintf("%d. %s: %s\n", i+1, item.Source, item.Error))
		}
	}

	return buf.Bytes(), nil
}

// SearchToCSV converts search hits to CSV with columns: ID, Title, Channel, Duration, URL
func SearchToCSV(results []models.SearchResult) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"ID", "Title", "Channel", "Duration", "URL"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, r := range results {
		if err := writer.Write([]string{r.ID, r.Title, r.Channel, strconv.Itoa(r.Duration), r.URL}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty URL", shared.ErrMissingArgument)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: image download returned status %d", shared.ErrUpstream, resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	Thumbnails int
}

// WriteMarkdownExport writes {dir}/README.md and, when client is non-nil, {dir}/<sourceId>.jpg
// for every resolved stream. A failed thumbnail download falls back to the remote link.
func WriteMarkdownExport(ctx context.Context, batch *tasks.BatchResult, outputDir string, client *http.Client) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = "streams"
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}
	thumbs := map[string]string{}

	if client != nil {
		for _, item := range batch.Items {
			r := item.Response
			if r == nil || r.Thumbnail == "" {
				continue
			}
			if _, done := thumbs[r.SourceID]; done {
				continue
			}
			data, err := DownloadImage(ctx, client, r.Thumbnail)
			if err != nil {
				continue
			}
			name := r.SourceID + ".jpg"
			path := filepath.Join(outputDir, name)
			if err := os.WriteFile(path, data, 0644); err != nil {
				continue
			}
			thumbs[r.SourceID] = name
			result.Files = append(result.Files, path)
			result.Thumbnails++
		}
	}

	mdData, err := BatchToMarkdown(batch, thumbs)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteFileExport renders batch in format and writes it to path.
func WriteFileExport(batch *tasks.BatchResult, format Format, path string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case FormatCSV:
		data, err = BatchToCSV(batch)
	case FormatText:
		data, err = BatchToText(batch)
	case FormatJSON:
		data, err = shared.MarshalJSON(batch, true)
	default:
		return fmt.Errorf("%w: %s cannot be written to a single file", shared.ErrInvalidInput, format)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return nil
}
