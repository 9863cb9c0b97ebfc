package token

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		cookies string
		key     string
		want    string
	}{
		{"absent storage", "", "csrftoken", ""},
		{"single", "csrftoken=abc123", "csrftoken", "abc123"},
		{"among others", "sessionid=xyz; csrftoken=abc123; theme=dark", "csrftoken", "abc123"},
		{"url encoded", "csrftoken=a%2Bb%3Dc", "csrftoken", "a+b=c"},
		{"prefix collision", "xcsrftoken=nope; csrftoken=yes", "csrftoken", "yes"},
		{"missing key", "sessionid=xyz", "csrftoken", ""},
		{"bad escape returned verbatim", "csrftoken=%zz", "csrftoken", "%zz"},
		{"empty value", "csrftoken=", "csrftoken", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Lookup(tt.cookies, tt.key); got != tt.want {
				t.Fatalf("Lookup() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCookieProviderRereadsSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cookies.txt")
	provider := NewCookieProvider("", FileSource(path))

	if got := provider.CurrentToken(); got != "" {
		t.Fatalf("expected empty token for missing file, got %q", got)
	}

	if err := os.WriteFile(path, []byte("# exported\nsessionid=s1; csrftoken=first\n"), 0o600); err != nil {
		t.Fatalf("write cookies: %v", err)
	}
	if got := provider.CurrentToken(); got != "first" {
		t.Fatalf("expected first token, got %q", got)
	}

	if err := os.WriteFile(path, []byte("csrftoken=second"), 0o600); err != nil {
		t.Fatalf("rewrite cookies: %v", err)
	}
	if got := provider.CurrentToken(); got != "second" {
		t.Fatalf("expected token re-read after change, got %q", got)
	}
	if got := provider.CookieHeader(); got != "csrftoken=second" {
		t.Fatalf("unexpected cookie header %q", got)
	}
}

func TestCookieProviderSourceErrorIsEmpty(t *testing.T) {
	provider := NewCookieProvider("csrftoken", func() (string, error) {
		return "csrftoken=leak", errors.New("permission denied")
	})
	if got := provider.CurrentToken(); got != "" {
		t.Fatalf("expected empty token on source error, got %q", got)
	}
	var nilProvider *CookieProvider
	if nilProvider.CookieHeader() != "" {
		t.Fatal("expected nil provider to report empty storage")
	}
}

func TestFirstOf(t *testing.T) {
	failing := func() (string, error) { return "", errors.New("boom") }
	src := FirstOf(nil, failing, StringSource(""), StringSource("csrftoken=env"))
	got, err := src()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "csrftoken=env" {
		t.Fatalf("expected first non-empty source, got %q", got)
	}

	if _, err := FirstOf(failing)(); err == nil {
		t.Fatal("expected error when every source fails")
	}
}

func TestEnvSource(t *testing.T) {
	t.Setenv("ROLLCALL_TEST_COOKIES", "csrftoken=from-env")
	provider := NewCookieProvider("csrftoken", EnvSource("ROLLCALL_TEST_COOKIES"))
	if got := provider.CurrentToken(); got != "from-env" {
		t.Fatalf("expected env token, got %q", got)
	}
}

func TestStatic(t *testing.T) {
	var p Provider = Static("fixed")
	if p.CurrentToken() != "fixed" {
		t.Fatal("expected fixed token")
	}
}
