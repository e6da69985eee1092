// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// serveCommand starts the HTTP service
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the stream relay HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Interface to listen on (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to listen on (overrides server.port and PORT)",
			},
		},
		Action: r.Serve,
	}
}

// resolveCommand orchestrates resolution in-process
func resolveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Aliases:   []string{"r"},
		Usage:     "Resolve one or more YouTube/Spotify references without a server",
		ArgsUsage: "<source> [source...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the direct URL of the first resolved stream in the browser",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "Prefix for printed proxy URLs",
				Value: "http://localhost:8000",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent resolutions for multiple sources",
				Value: 3,
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Export format for --output (json, csv, markdown, text)",
				Value: "json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write results to this file (or directory for markdown)",
			},
		},
		Action: r.Resolve,
	}
}

// searchCommand runs a YouTube search
func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Aliases:   []string{"s"},
		Usage:     "Search YouTube",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of results (1-20)",
				Value:   5,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV",
			},
		},
		Action: r.Search,
	}
}

// statusCommand queries a running server
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the status of a running server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Base URL of the server",
				Value: "http://localhost:8000",
			},
			&cli.BoolFlag{
				Name:  "logs",
				Usage: "Include the recent resolver attempts",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// setupCommand handles configuration and cookie setup.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml populated with defaults",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "cookies",
				Usage: "Convert browser cookies into a Netscape cookies.txt for yt-dlp",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "input",
						Usage: "Path to a JSON or Netscape cookie export",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output path for the cookie jar",
						Value: "cookies.txt",
					},
				},
				Action: r.SetupCookies,
			},
		},
	}
}
