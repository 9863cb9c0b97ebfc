// Package token looks up the anti-forgery token echoed on attendance
// submissions.
//
// The token lives in ambient cookie-like storage: a semicolon-separated list of
// key=value pairs, as exported from an authenticated browser session. Every
// lookup re-reads the source so a re-authentication is picked up without a
// restart.
package token

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"strings"
)

// DefaultCookieName is the well-known anti-forgery cookie key.
const DefaultCookieName = "csrftoken"

// CookieEnv names the environment variable holding a cookie string when no
// cookie file is available.
const CookieEnv = "ROLLCALL_COOKIES"

// Provider supplies the token for outgoing requests.
type Provider interface {
	CurrentToken() string
}

// Source returns the raw ambient cookie string.
type Source func() (string, error)

// Static is a Provider returning a fixed token.
type Static string

// CurrentToken returns the fixed token.
func (s Static) CurrentToken() string { return string(s) }

// CookieProvider scans an ambient cookie string for a named key.
type CookieProvider struct {
	name   string
	source Source
}

// NewCookieProvider builds a provider for the named cookie. An empty name
// selects DefaultCookieName; a nil source behaves as empty storage.
func NewCookieProvider(name string, source Source) *CookieProvider {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultCookieName
	}
	return &CookieProvider{name: name, source: source}
}

// CurrentToken returns the decoded token value or "" when absent or unreadable.
func (p *CookieProvider) CurrentToken() string {
	return Lookup(p.CookieHeader(), p.name)
}

// CookieHeader returns the raw ambient cookie string, trimmed, or "".
func (p *CookieProvider) CookieHeader() string {
	if p == nil || p.source == nil {
		return ""
	}
	raw, err := p.source()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(raw)
}

// Lookup scans a "k1=v1; k2=v2" string for name and returns its URL-decoded
// value. A value that fails to decode is returned verbatim.
func Lookup(cookies, name string) string {
	if cookies == "" || name == "" {
		return ""
	}
	prefix := name + "="
	for _, item := range strings.Split(cookies, ";") {
		item = strings.TrimSpace(item)
		if !strings.HasPrefix(item, prefix) {
			continue
		}
		raw := item[len(prefix):]
		decoded, err := url.PathUnescape(raw)
		if err != nil {
			return raw
		}
		return decoded
	}
	return ""
}

// FileSource reads the cookie string from path on every call. A missing file
// is empty storage, not an error.
func FileSource(path string) Source {
	return func() (string, error) {
		if strings.TrimSpace(path) == "" {
			return "", nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", nil
			}
			return "", err
		}
		return firstCookieLine(string(data)), nil
	}
}

// EnvSource reads the cookie string from an environment variable on every call.
func EnvSource(key string) Source {
	return func() (string, error) {
		return os.Getenv(key), nil
	}
}

// StringSource returns a fixed cookie string.
func StringSource(cookies string) Source {
	return func() (string, error) { return cookies, nil }
}

// FirstOf tries each source in order and returns the first non-empty value.
func FirstOf(sources ...Source) Source {
	return func() (string, error) {
		var firstErr error
		for _, src := range sources {
			if src == nil {
				continue
			}
			value, err := src()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			if strings.TrimSpace(value) != "" {
				return value, nil
			}
		}
		return "", firstErr
	}
}

// firstCookieLine skips blank lines and '#' comments so a cookie file can be
// annotated.
func firstCookieLine(data string) string {
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line
	}
	return ""
}
