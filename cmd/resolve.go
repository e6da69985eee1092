package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/ytrelay/internal/formatter"
	"github.com/desertthunder/ytrelay/internal/services"
	"github.com/desertthunder/ytrelay/internal/shared"
	"github.com/desertthunder/ytrelay/internal/tasks"
	"github.com/desertthunder/ytrelay/internal/ui"
	"github.com/urfave/cli/v3"
)

// Resolve runs the resolver chain in-process for every source argument.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	sources := cmd.Args().Slice()
	if len(sources) == 0 {
		return fmt.Errorf("%w: at least one source is required", shared.ErrMissingArgument)
	}

	useJSON := cmd.Bool("json")
	pretty := cmd.Bool("pretty")
	output := cmd.String("output")

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	s, err := r.build()
	if err != nil {
		return err
	}

	var progress chan tasks.ProgressUpdate
	done := make(chan struct{})
	if len(sources) > 1 && !useJSON {
		progress = make(chan tasks.ProgressUpdate, 50)
		go func() {
			defer close(done)
			ui.NewProgressPrinter(r.output).Drain(progress)
		}()
	} else {
		close(done)
	}

	result, err := s.engine.StreamMany(ctx, progress, sources, tasks.BatchOpts{NumWorkers: int(cmd.Int("workers"))})
	if progress != nil {
		close(progress)
	}
	<-done
	if err != nil {
		return err
	}

	if output != "" {
		if err := r.export(ctx, result, format, output); err != nil {
			return err
		}
	}

	switch {
	case useJSON && len(sources) == 1:
		item := result.Items[0]
		if item.Err != nil {
			return item.Err
		}
		if err := r.writeJSON(item.Response, pretty); err != nil {
			return err
		}
	case useJSON:
		if err := r.writeJSON(result, pretty); err != nil {
			return err
		}
	default:
		base := cmd.String("base-url")
		for _, item := range result.Items {
			if item.Response == nil {
				r.writePlain("%s %s: %s\n", ui.Styles.Err("✗"), item.Source, item.Error)
				continue
			}
			r.writePlain("%s\n", ui.Styles.Card(item.Response, base))
		}
		if len(sources) > 1 {
			r.writePlainln("Resolved %d/%d", result.Succeeded, len(result.Items))
		}
	}

	if cmd.Bool("open") {
		for _, item := range result.Items {
			if item.Response == nil {
				continue
			}
			if err := shared.OpenBrowser(item.Response.DirectURL); err != nil {
				r.logger.Warn("failed to open browser", "error", err)
			}
			break
		}
	}

	if result.Succeeded == 0 {
		if len(result.Items) == 1 {
			return result.Items[0].Err
		}
		return fmt.Errorf("%w: none of %d sources resolved", shared.ErrResolutionFailed, len(result.Items))
	}
	return nil
}

// export writes the batch to a file, or a directory for markdown.
func (r *Runner) export(ctx context.Context, result *tasks.BatchResult, format formatter.Format, output string) error {
	if format == formatter.FormatMarkdown {
		res, err := formatter.WriteMarkdownExport(ctx, result, output, r.httpClient)
		if err != nil {
			return err
		}
		r.logger.Info("markdown export written", "dir", res.Directory, "files", len(res.Files), "thumbnails", res.Thumbnails)
		return nil
	}

	if err := formatter.WriteFileExport(result, format, output); err != nil {
		return err
	}
	r.logger.Info("export written", "format", format, "path", output)
	return nil
}

// Search queries YouTube and prints the hits.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	limit := services.ClampSearchLimit(int(cmd.Int("limit")))

	searcher := r.searcher
	if searcher == nil {
		searcher = services.NewYouTubeSearcher()
	}

	r.logger.Debug("searching youtube", "query", query, "limit", limit)
	results, err := searcher.Search(ctx, query, limit)
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(results, true)
	case cmd.Bool("csv"):
		data, err := formatter.SearchToCSV(results)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	default:
		return r.writePlain("%s\n", ui.Styles.SearchList(results))
	}
}
