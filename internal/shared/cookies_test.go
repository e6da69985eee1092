package shared

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const netscapeFixture = `# Netscape HTTP Cookie File
# This is a generated file!  Do not edit.

.youtube.com	TRUE	/	TRUE	1767225600	SID	abc
#HttpOnly_.youtube.com	TRUE	/	TRUE	0	HSID	def
`

func TestParseCookies(t *testing.T) {
	t.Run("JSON array export", func(t *testing.T) {
		data := []byte(`[
			{"domain": ".youtube.com", "hostOnly": false, "path": "/", "secure": true, "httpOnly": true, "expirationDate": 1767225600.5, "name": "SID", "value": "abc"},
			{"domain": "www.youtube.com", "hostOnly": true, "secure": false, "name": "PREF", "value": "f6=1"}
		]`)

		parsed, err := ParseCookies(data)
		if err != nil {
			t.Fatalf("ParseCookies() error = %v", err)
		}
		if parsed.Format != CookieFormatJSON {
			t.Errorf("expected json format, got %v", parsed.Format)
		}

		want := []Cookie{
			{Domain: ".youtube.com", IncludeSubdomains: true, Path: "/", Secure: true, HTTPOnly: true, Expires: 1767225600, Name: "SID", Value: "abc"},
			{Domain: "www.youtube.com", Path: "/", Name: "PREF", Value: "f6=1"},
		}
		if diff := cmp.Diff(want, parsed.Cookies); diff != "" {
			t.Errorf("ParseCookies() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("JSON object with cookies key", func(t *testing.T) {
		parsed, err := ParseCookies([]byte(`{"cookies": [{"domain": ".youtube.com", "name": "SID", "value": "abc"}]}`))
		if err != nil {
			t.Fatalf("ParseCookies() error = %v", err)
		}
		if len(parsed.Cookies) != 1 || parsed.Cookies[0].Name != "SID" {
			t.Errorf("unexpected cookies %+v", parsed.Cookies)
		}
	})

	t.Run("Netscape export", func(t *testing.T) {
		parsed, err := ParseCookies([]byte(netscapeFixture))
		if err != nil {
			t.Fatalf("ParseCookies() error = %v", err)
		}
		if parsed.Format != CookieFormatNetscape {
			t.Errorf("expected netscape format, got %v", parsed.Format)
		}

		want := []Cookie{
			{Domain: ".youtube.com", IncludeSubdomains: true, Path: "/", Secure: true, Expires: 1767225600, Name: "SID", Value: "abc"},
			{Domain: ".youtube.com", IncludeSubdomains: true, Path: "/", Secure: true, HTTPOnly: true, Name: "HSID", Value: "def"},
		}
		if diff := cmp.Diff(want, parsed.Cookies); diff != "" {
			t.Errorf("ParseCookies() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("rejects unknown shapes", func(t *testing.T) {
		tc := []struct {
			name string
			data string
		}{
			{name: "empty", data: "   "},
			{name: "plain text", data: "hello world"},
			{name: "short row", data: ".youtube.com\tTRUE\t/\tSID"},
			{name: "bad expiry", data: ".youtube.com\tTRUE\t/\tTRUE\tsoon\tSID\tabc"},
			{name: "empty json array", data: "[]"},
			{name: "comments only", data: "# Netscape HTTP Cookie File\n"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := ParseCookies([]byte(tt.data)); !errors.Is(err, ErrCookieParse) {
					t.Errorf("ParseCookies() = %v, want ErrCookieParse", err)
				}
			})
		}
	})
}

func TestWriteNetscape(t *testing.T) {
	parsed, err := ParseCookies([]byte(netscapeFixture))
	if err != nil {
		t.Fatalf("ParseCookies() error = %v", err)
	}

	var buf bytes.Buffer
	if err := WriteNetscape(&buf, parsed.Cookies); err != nil {
		t.Fatalf("WriteNetscape() error = %v", err)
	}

	want := "# Netscape HTTP Cookie File\n" +
		".youtube.com\tTRUE\t/\tTRUE\t1767225600\tSID\tabc\n" +
		"#HttpOnly_.youtube.com\tTRUE\t/\tTRUE\t0\tHSID\tdef\n"
	if got := buf.String(); got != want {
		t.Errorf("WriteNetscape() = %q, want %q", got, want)
	}

	reparsed, err := ParseCookies(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseCookies() on written jar error = %v", err)
	}
	if diff := cmp.Diff(parsed.Cookies, reparsed.Cookies); diff != "" {
		t.Errorf("written jar does not parse back (-want +got):\n%s", diff)
	}
}

func TestDiscoverCookies(t *testing.T) {
	noEnv := func(string) string { return "" }

	t.Run("configured path wins", func(t *testing.T) {
		dir := t.TempDir()
		configured := filepath.Join(dir, "mine.txt")
		fallback := filepath.Join(dir, "other.txt")
		os.WriteFile(configured, []byte(netscapeFixture), 0600)
		os.WriteFile(fallback, []byte("other"), 0600)

		path, origin, err := DiscoverCookies(CookieSearch{
			Configured: configured,
			Candidates: []string{fallback},
			Getenv:     noEnv,
			RuntimeDir: dir,
		})
		if err != nil {
			t.Fatalf("DiscoverCookies() error = %v", err)
		}
		if origin != configured {
			t.Errorf("origin = %s, want %s", origin, configured)
		}
		if path != filepath.Join(dir, RuntimeCookieFile) {
			t.Errorf("path = %s", path)
		}
		want := "# Netscape HTTP Cookie File\n" +
			".youtube.com\tTRUE\t/\tTRUE\t1767225600\tSID\tabc\n" +
			"#HttpOnly_.youtube.com\tTRUE\t/\tTRUE\t0\tHSID\tdef\n"
		data, _ := os.ReadFile(path)
		if diff := cmp.Diff(want, string(data)); diff != "" {
			t.Errorf("runtime jar mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("skips missing and empty candidates", func(t *testing.T) {
		dir := t.TempDir()
		empty := filepath.Join(dir, "empty.txt")
		good := filepath.Join(dir, "good.txt")
		os.WriteFile(empty, []byte("  \n"), 0600)
		os.WriteFile(good, []byte(netscapeFixture), 0600)

		_, origin, err := DiscoverCookies(CookieSearch{
			Configured: filepath.Join(dir, "missing.txt"),
			Candidates: []string{empty, good},
			Getenv:     noEnv,
			RuntimeDir: dir,
		})
		if err != nil {
			t.Fatalf("DiscoverCookies() error = %v", err)
		}
		if origin != good {
			t.Errorf("origin = %s, want %s", origin, good)
		}
	})

	t.Run("falls back to environment", func(t *testing.T) {
		dir := t.TempDir()
		path, origin, err := DiscoverCookies(CookieSearch{
			Getenv: func(k string) string {
				if k == "YTDLP_COOKIES" {
					return netscapeFixture
				}
				return ""
			},
			RuntimeDir: dir,
		})
		if err != nil {
			t.Fatalf("DiscoverCookies() error = %v", err)
		}
		if origin != "env:YTDLP_COOKIES" {
			t.Errorf("origin = %s", origin)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("runtime file missing: %v", err)
		}
	})

	t.Run("json env value is written as netscape", func(t *testing.T) {
		dir := t.TempDir()
		path, origin, err := DiscoverCookies(CookieSearch{
			Getenv: func(k string) string {
				if k == "YTDLP_COOKIES" {
					return `[{"domain": ".youtube.com", "path": "/", "secure": true, "expirationDate": 1767225600, "name": "SID", "value": "abc"}]`
				}
				return ""
			},
			RuntimeDir: dir,
		})
		if err != nil {
			t.Fatalf("DiscoverCookies() error = %v", err)
		}
		if origin != "env:YTDLP_COOKIES" {
			t.Errorf("origin = %s", origin)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("runtime file missing: %v", err)
		}
		want := "# Netscape HTTP Cookie File\n.youtube.com\tTRUE\t/\tTRUE\t1767225600\tSID\tabc\n"
		if diff := cmp.Diff(want, string(data)); diff != "" {
			t.Errorf("runtime jar mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("unparseable candidates are skipped", func(t *testing.T) {
		dir := t.TempDir()
		garbage := filepath.Join(dir, "garbage.txt")
		good := filepath.Join(dir, "good.json")
		os.WriteFile(garbage, []byte("not a cookie jar"), 0600)
		os.WriteFile(good, []byte(`{"cookies": [{"domain": ".youtube.com", "name": "SID", "value": "abc"}]}`), 0600)

		path, origin, err := DiscoverCookies(CookieSearch{
			Candidates: []string{garbage, good},
			Getenv:     noEnv,
			RuntimeDir: dir,
		})
		if err != nil {
			t.Fatalf("DiscoverCookies() error = %v", err)
		}
		if origin != good {
			t.Errorf("origin = %s, want %s", origin, good)
		}
		parsed, err := ParseCookies(mustRead(t, path))
		if err != nil || parsed.Format != CookieFormatNetscape {
			t.Errorf("runtime jar is not netscape: %v", err)
		}
	})

	t.Run("only unparseable sources", func(t *testing.T) {
		dir := t.TempDir()
		garbage := filepath.Join(dir, "garbage.txt")
		os.WriteFile(garbage, []byte("not a cookie jar"), 0600)

		_, _, err := DiscoverCookies(CookieSearch{Candidates: []string{garbage}, Getenv: noEnv, RuntimeDir: dir})
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
		if !errors.Is(err, ErrCookieParse) {
			t.Errorf("parse failure not preserved: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, RuntimeCookieFile)); !os.IsNotExist(err) {
			t.Errorf("runtime file written for unusable cookies: %v", err)
		}
	})

	t.Run("nothing found", func(t *testing.T) {
		_, _, err := DiscoverCookies(CookieSearch{Getenv: noEnv, RuntimeDir: t.TempDir()})
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func mustRead(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	return data
}
