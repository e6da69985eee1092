package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/ytrelay/internal/shared"
	"github.com/desertthunder/ytrelay/internal/ui"
	"github.com/urfave/cli/v3"
)

const youtubeCookieDomain = ".youtube.com"

// SetupConfig writes a config file populated with the defaults.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	r.logger.Info("creating config file from template", "path", configPath)
	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}

	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("written config does not load: %w", err)
	}

	r.writePlain("%s Config written to %s\n", ui.Styles.OK("✓"), configPath)
	r.writePlain("Listening on %s with the %s resolver\n", config.Server.Addr(), config.Resolver.Backend)
	r.writePlainln("Next steps:")
	r.writePlain("1. Export YouTube cookies with 'ytrelay setup cookies'\n")
	r.writePlain("2. Run 'ytrelay serve'\n")
	return nil
}

// SetupCookies converts browser cookies into a Netscape cookie jar.
//
// Accepts a cURL command (--curl or --curl-file) or a JSON/Netscape export (--input).
func (r *Runner) SetupCookies(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	input := cmd.String("input")
	outputPath := cmd.String("output")

	given := 0
	for _, v := range []string{curlCmd, curlFile, input} {
		if v != "" {
			given++
		}
	}
	if given == 0 {
		return fmt.Errorf("%w: one of --curl, --curl-file or --input must be provided", shared.ErrMissingArgument)
	}
	if given > 1 {
		return fmt.Errorf("%w: --curl, --curl-file and --input are mutually exclusive", shared.ErrInvalidInput)
	}

	var (
		cookies []shared.Cookie
		origin  string
	)

	switch {
	case input != "":
		data, err := os.ReadFile(input)
		if err != nil {
			return fmt.Errorf("failed to read cookie export: %w", err)
		}
		parsed, err := shared.ParseCookies(data)
		if err != nil {
			return err
		}
		cookies, origin = parsed.Cookies, parsed.Format.String()+" export"
	default:
		var (
			req *shared.CurlRequest
			err error
		)
		if curlFile != "" {
			req, err = shared.ParseCurlFile(curlFile)
		} else {
			req, err = shared.ParseCurlCommand(curlCmd)
		}
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		if cookies, err = req.Cookies(youtubeCookieDomain); err != nil {
			return err
		}
		origin = "cURL command"
	}

	if len(cookies) == 0 {
		return fmt.Errorf("%w: no cookies found", shared.ErrCookieParse)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create cookie file: %w", err)
	}
	defer f.Close()

	if err := shared.WriteNetscape(f, cookies); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}

	r.logger.Info("cookies written", "from", origin, "count", len(cookies), "path", outputPath)

	r.writePlain("%s Wrote %d cookies to %s\n", ui.Styles.OK("✓"), len(cookies), outputPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set resolver.cookies_file = \"%s\" in config.toml (or COOKIES_FILE)\n", outputPath)
	r.writePlain("2. Run 'ytrelay resolve <video>' to test\n")
	return nil
}
