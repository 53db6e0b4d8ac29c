package integrations

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is matched by errors for 404 responses.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is matched by transport failures and 5xx responses.
	ErrNetwork = errors.New("network error")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.URL, e.StatusCode)
}

// Is lets errors.Is match ErrNotFound for 404 and ErrNetwork for 5xx.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrNetwork:
		return e.StatusCode >= 500
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0 if err carries none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// NewHTTPClient creates an HTTP client with a standard timeout. A nil
// transport uses http.DefaultTransport.
func NewHTTPClient(transport http.RoundTripper) *http.Client {
	return &http.Client{Timeout: httpTimeout, Transport: transport}
}

var repoURLReplacer = strings.NewReplacer(
	"git@github.com:", "https://github.com/",
	"git://github.com/", "https://github.com/",
	"github:", "https://github.com/",
)

// NormalizeRepoURL converts git@, git:// and git+ repository URLs to their
// https form without a .git suffix. Returns empty string if raw is empty.
func NormalizeRepoURL(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "git+")
	s = repoURLReplacer.Replace(s)
	return strings.TrimSuffix(s, ".git")
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }
