package relay

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/ytrelay/internal/shared"
)

var legacyEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

// DecodeLegacyURL decodes the deprecated ?url= parameter.
//
// Older clients sent standard base64, which arrives with '+' turned into spaces when left
// unescaped; URL-safe and unpadded variants are also accepted, as is a plain http(s) URL.
// Anything that does not decode to an absolute http(s) URL wraps [shared.ErrDecode].
func DecodeLegacyURL(raw string) (string, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "+")
	if s == "" {
		return "", fmt.Errorf("%w: empty url parameter", shared.ErrDecode)
	}

	for _, enc := range legacyEncodings {
		b, err := enc.DecodeString(s)
		if err != nil {
			continue
		}
		if u := string(b); isHTTPURL(u) {
			return u, nil
		}
	}

	if isHTTPURL(raw) {
		return raw, nil
	}

	return "", fmt.Errorf("%w: url parameter is not a base64-encoded http(s) URL", shared.ErrDecode)
}

// EncodeLegacyURL produces the ?url= value older clients expect.
func EncodeLegacyURL(u string) string {
	return base64.StdEncoding.EncodeToString([]byte(u))
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
