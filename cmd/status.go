package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/ytrelay/internal/models"
	"github.com/desertthunder/ytrelay/internal/server"
	"github.com/desertthunder/ytrelay/internal/shared"
	"github.com/desertthunder/ytrelay/internal/ui"
	"github.com/urfave/cli/v3"
)

// Status queries a running server's /api/status and, with --logs, its /logs.
func (r *Runner) Status(ctx context.Context, cmd *cli.Command) error {
	addr := strings.TrimRight(cmd.String("addr"), "/")

	var status server.Status
	if err := r.getJSON(ctx, addr+"/api/status", &status); err != nil {
		return err
	}

	var logs struct {
		Logs []models.ResolveAttempt `json:"logs"`
	}
	if cmd.Bool("logs") {
		if err := r.getJSON(ctx, addr+"/logs", &logs); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		if cmd.Bool("logs") {
			return r.writeJSON(map[string]any{"status": status, "logs": logs.Logs}, true)
		}
		return r.writeJSON(status, true)
	}

	r.writePlain("%s\n", ui.Styles.Title(fmt.Sprintf("%s %s", status.Service, status.Version)))
	r.writePlain("Resolver:  %s\n", status.Resolver)
	if status.Delegate != "" {
		r.writePlain("Delegate:  %s\n", status.Delegate)
	}
	r.writePlain("Node.js:   %s\n", yesNo(status.NodeJS))
	r.writePlain("Cookies:   %s %s\n", yesNo(status.Cookies), status.CookiesPath)
	r.writePlain("Spotify:   %s\n", yesNo(status.Spotify))
	r.writePlain("Timeout:   %ds\n", status.Timeout)
	r.writePlain("Cache:     %d/%d entries\n", status.CacheEntries, status.CacheCapacity)

	if cmd.Bool("logs") {
		r.writePlainln("Recent attempts:")
		if len(logs.Logs) == 0 {
			r.writePlain("%s\n", ui.Styles.Help("none"))
		}
		for _, a := range logs.Logs {
			mark := ui.Styles.OK("✓")
			if !a.Success {
				mark = ui.Styles.Err("✗")
			}
			r.writePlain("%s %s %-8s %5dms %s\n", mark, a.Timestamp.Format("15:04:05"), a.Resolver, a.ElapsedMS, a.SourceID)
		}
	}
	return nil
}

func (r *Runner) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s returned %d", shared.ErrAPIRequest, url, resp.StatusCode)
	}
	return decodeJSON(resp.Body, v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
