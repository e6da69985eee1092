// Utilities for turning a browser "Copy as cURL" command into a yt-dlp cookie jar.
package shared

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRe = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`(?:-b|--cookie)\s+'([^']+)'|(?:-b|--cookie)\s+"([^"]+)"`)
	curlURLRe    = regexp.MustCompile(`curl\s+'(https?://[^']+)'|curl\s+"(https?://[^"]+)"|(https?://\S+)`)
)

// CurlRequest holds the parts of a cURL command needed to rebuild browser cookies.
type CurlRequest struct {
	URL     string
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(path string) (*CurlRequest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(string(content))
}

// ParseCurlCommand parses a cURL command string and extracts the target URL, headers and cookie string.
//
// A -b/--cookie flag takes precedence over a Cookie header.
func ParseCurlCommand(cmd string) (*CurlRequest, error) {
	cmd = strings.ReplaceAll(cmd, "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	req := &CurlRequest{Headers: make(map[string]string)}
	var headerCookie string

	for _, match := range curlHeaderRe.FindAllStringSubmatch(cmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		req.Headers[key] = value
	}

	if m := curlCookieRe.FindStringSubmatch(cmd); m != nil {
		req.Cookie = firstGroup(m)
	} else {
		req.Cookie = headerCookie
	}

	if m := curlURLRe.FindStringSubmatch(cmd); m != nil {
		req.URL = firstGroup(m)
	}

	if len(req.Headers) == 0 && req.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return req, nil
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}

// Cookies splits the cookie string into [Cookie] values scoped to the request host.
//
// fallbackDomain is used when the command carried no URL. Session cookies are written with expiry 0.
func (c *CurlRequest) Cookies(fallbackDomain string) ([]Cookie, error) {
	domain := fallbackDomain
	secure := true
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil && u.Hostname() != "" {
			domain = u.Hostname()
			secure = u.Scheme == "https"
		}
	}
	if domain == "" {
		return nil, fmt.Errorf("%w: cookie domain unknown", ErrMissingArgument)
	}
	if parts := strings.Split(domain, "."); len(parts) > 2 {
		domain = strings.Join(parts[len(parts)-2:], ".")
	}
	domain = "." + strings.TrimPrefix(domain, ".")

	var cookies []Cookie
	for pair := range strings.SplitSeq(c.Cookie, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, Cookie{
			Domain:            domain,
			IncludeSubdomains: true,
			Path:              "/",
			Secure:            secure,
			Name:              name,
			Value:             value,
		})
	}

	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: curl command carried no cookies", ErrCookieParse)
	}
	return cookies, nil
}
