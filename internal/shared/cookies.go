package shared

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

const netscapeHeader = "# Netscape HTTP Cookie File\n"

// RuntimeCookieFile is the file name cookies are copied to before being handed to yt-dlp,
// which rewrites its cookie jar on exit.
const RuntimeCookieFile = "yt_cookies_runtime.txt"

// CookieFormat identifies the shape a cookie export was parsed from.
type CookieFormat int

const (
	CookieFormatJSON CookieFormat = iota
	CookieFormatNetscape
)

func (f CookieFormat) String() string {
	switch f {
	case CookieFormatJSON:
		return "json"
	case CookieFormatNetscape:
		return "netscape"
	default:
		return "unknown"
	}
}

// Cookie is a single browser cookie.
type Cookie struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	HTTPOnly          bool
	Expires           int64 // Unix seconds, 0 for session cookies
	Name              string
	Value             string
}

// ParsedCookies is the result of [ParseCookies].
type ParsedCookies struct {
	Format  CookieFormat
	Cookies []Cookie
}

// jsonCookie matches the export shape of common browser cookie extensions.
type jsonCookie struct {
	Domain         string  `json:"domain"`
	HostOnly       bool    `json:"hostOnly"`
	Path           string  `json:"path"`
	Secure         bool    `json:"secure"`
	HTTPOnly       bool    `json:"httpOnly"`
	ExpirationDate float64 `json:"expirationDate"`
	Name           string  `json:"name"`
	Value          string  `json:"value"`
}

// ParseCookies parses a cookie export, trying JSON first and then the Netscape tab-separated format.
//
// Input matching neither shape returns an error wrapping [ErrCookieParse].
func ParseCookies(data []byte) (*ParsedCookies, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrCookieParse)
	}

	if cookies, err := parseJSONCookies(trimmed); err == nil {
		return &ParsedCookies{Format: CookieFormatJSON, Cookies: cookies}, nil
	}

	cookies, err := parseNetscapeCookies(trimmed)
	if err != nil {
		return nil, err
	}
	return &ParsedCookies{Format: CookieFormatNetscape, Cookies: cookies}, nil
}

func parseJSONCookies(data []byte) ([]Cookie, error) {
	var raw []jsonCookie
	if err := json.Unmarshal(data, &raw); err != nil {
		var wrapped struct {
			Cookies []jsonCookie `json:"cookies"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil || wrapped.Cookies == nil {
			return nil, err
		}
		raw = wrapped.Cookies
	}

	cookies := make([]Cookie, 0, len(raw))
	for _, c := range raw {
		if c.Name == "" || c.Domain == "" {
			continue
		}
		path := c.Path
		if path == "" {
			path = "/"
		}
		cookies = append(cookies, Cookie{
			Domain:            c.Domain,
			IncludeSubdomains: !c.HostOnly && strings.HasPrefix(c.Domain, "."),
			Path:              path,
			Secure:            c.Secure,
			HTTPOnly:          c.HTTPOnly,
			Expires:           int64(c.ExpirationDate),
			Name:              c.Name,
			Value:             c.Value,
		})
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: no cookies in JSON input", ErrCookieParse)
	}
	return cookies, nil
}

func parseNetscapeCookies(data []byte) ([]Cookie, error) {
	var cookies []Cookie
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimRight(scanner.Text(), "\r")
		httpOnly := false
		if rest, ok := strings.CutPrefix(line, "#HttpOnly_"); ok {
			line, httpOnly = rest, true
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("%w: line %d has %d fields, want 7", ErrCookieParse, lineNo, len(fields))
		}

		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d expiry %q", ErrCookieParse, lineNo, fields[4])
		}

		cookies = append(cookies, Cookie{
			Domain:            fields[0],
			IncludeSubdomains: strings.EqualFold(fields[1], "TRUE"),
			Path:              fields[2],
			Secure:            strings.EqualFold(fields[3], "TRUE"),
			HTTPOnly:          httpOnly,
			Expires:           expires,
			Name:              fields[5],
			Value:             fields[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCookieParse, err)
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: no cookie lines found", ErrCookieParse)
	}
	return cookies, nil
}

// WriteNetscape writes cookies in the Netscape cookie-jar format read by yt-dlp and curl.
func WriteNetscape(w io.Writer, cookies []Cookie) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(netscapeHeader); err != nil {
		return err
	}

	for _, c := range cookies {
		domain := c.Domain
		if c.HTTPOnly {
			domain = "#HttpOnly_" + domain
		}
		if _, err := fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, netscapeBool(c.IncludeSubdomains), c.Path, netscapeBool(c.Secure), c.Expires, c.Name, c.Value,
		); err != nil {
			return err
		}
	}

	return bw.Flush()
}

func netscapeBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// CookieSearch describes where [DiscoverCookies] looks for a cookie jar.
type CookieSearch struct {
	Configured string              // Explicit path from config, tried first
	Candidates []string            // Well-known locations tried in order
	Getenv     func(string) string // Reads YTDLP_COOKIES as a last resort
	RuntimeDir string              // Directory the runtime copy is written to
	Logger     *log.Logger         // Reports skipped sources; optional
}

// DefaultCookieCandidates are the container and working-directory locations checked after the configured path.
var DefaultCookieCandidates = []string{"/app/cookies.txt", "/tmp/cookies.txt", "cookies.txt"}

// DiscoverCookies finds the first non-empty, parseable cookie source and writes it to a
// runtime file in Netscape format, whichever shape the source was exported in.
//
// It returns the runtime path and a description of where the cookies came from.
// Sources that fail to parse are skipped. When nothing usable is found the error wraps
// [ErrMissingCredentials], and the last parse failure when there was one.
func DiscoverCookies(s CookieSearch) (path, origin string, err error) {
	if s.RuntimeDir == "" {
		s.RuntimeDir = os.TempDir()
	}
	runtimePath := filepath.Join(s.RuntimeDir, RuntimeCookieFile)

	type source struct {
		origin string
		data   []byte
	}
	var sources []source

	candidates := s.Candidates
	if s.Configured != "" {
		candidates = append([]string{s.Configured}, candidates...)
	}
	for _, candidate := range candidates {
		data, err := os.ReadFile(candidate)
		if err != nil || len(bytes.TrimSpace(data)) == 0 {
			continue
		}
		sources = append(sources, source{origin: candidate, data: data})
	}
	if s.Getenv != nil {
		if data := s.Getenv("YTDLP_COOKIES"); strings.TrimSpace(data) != "" {
			sources = append(sources, source{origin: "env:YTDLP_COOKIES", data: []byte(data)})
		}
	}

	var parseErr error
	for _, src := range sources {
		parsed, err := ParseCookies(src.data)
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("skipping unreadable cookies", "source", src.origin, "error", err)
			}
			parseErr = err
			continue
		}

		var buf bytes.Buffer
		if err := WriteNetscape(&buf, parsed.Cookies); err != nil {
			return "", "", fmt.Errorf("failed to encode runtime cookies: %w", err)
		}
		if err := os.WriteFile(runtimePath, buf.Bytes(), 0600); err != nil {
			return "", "", fmt.Errorf("failed to write runtime cookies: %w", err)
		}
		if s.Logger != nil {
			s.Logger.Debug("prepared cookies", "source", src.origin, "format", parsed.Format, "count", len(parsed.Cookies))
		}
		return runtimePath, src.origin, nil
	}

	if parseErr != nil {
		return "", "", fmt.Errorf("%w: no usable cookies found: %w", ErrMissingCredentials, parseErr)
	}
	return "", "", fmt.Errorf("%w: no cookies found", ErrMissingCredentials)
}
