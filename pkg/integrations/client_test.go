package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/pkghealth/pkg/httputil"
)

type message struct {
	Message string `json:"message"`
}

func TestNewClient(t *testing.T) {
	headers := map[string]string{"User-Agent": "pkghealth-test"}
	client := NewClient(headers)

	if client.http == nil {
		t.Error("NewClient() http client is nil")
	}
	if client.headers["User-Agent"] != "pkghealth-test" {
		t.Error("NewClient() headers not set correctly")
	}
	if client.attempts != 3 {
		t.Errorf("attempts = %d, want 3", client.attempts)
	}
	if client.limiter != nil {
		t.Error("limiter should be nil by default")
	}
}

func TestClientGet(t *testing.T) {
	var gotAccept, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		json.NewEncoder(w).Encode(message{Message: "hello"})
	}))
	defer server.Close()

	client := NewClient(map[string]string{"User-Agent": "pkghealth-test"})

	var resp message
	if err := client.Get(context.Background(), server.URL, &resp); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if resp.Message != "hello" {
		t.Errorf("Get() message = %q, want %q", resp.Message, "hello")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
	if gotUA != "pkghealth-test" {
		t.Errorf("User-Agent = %q, want pkghealth-test", gotUA)
	}
}

func TestClientPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		var names []string
		json.NewDecoder(r.Body).Decode(&names)
		json.NewEncoder(w).Encode(map[string]int{"count": len(names)})
	}))
	defer server.Close()

	var resp map[string]int
	err := NewClient(nil).Post(context.Background(), server.URL, []string{"a", "b"}, &resp)
	if err != nil {
		t.Fatalf("Post() error: %v", err)
	}
	if resp["count"] != 2 {
		t.Errorf("count = %d, want 2", resp["count"])
	}
}

func TestClientStatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		notFound  bool
		network   bool
		retryable bool
	}{
		{"not found", http.StatusNotFound, true, false, false},
		{"bad request", http.StatusBadRequest, false, false, false},
		{"rate limited", http.StatusTooManyRequests, false, false, true},
		{"server error", http.StatusServiceUnavailable, false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			var v message
			err := NewClient(nil, WithRetries(1, 0)).Get(context.Background(), server.URL, &v)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrNotFound); got != tt.notFound {
				t.Errorf("Is(ErrNotFound) = %v, want %v", got, tt.notFound)
			}
			if got := errors.Is(err, ErrNetwork); got != tt.network {
				t.Errorf("Is(ErrNetwork) = %v, want %v", got, tt.network)
			}
			if got := httputil.IsRetryable(err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
			if got := StatusCode(err); got != tt.status {
				t.Errorf("StatusCode = %d, want %d", got, tt.status)
			}
		})
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(message{Message: "ok"})
	}))
	defer server.Close()

	var v message
	err := NewClient(nil, WithRetries(3, time.Millisecond)).Get(context.Background(), server.URL, &v)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClientDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	var v message
	_ = NewClient(nil, WithRetries(3, time.Millisecond)).Get(context.Background(), server.URL, &v)
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestClientBreakerIgnoresNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(nil, WithRetries(1, 0), WithBreakers(httputil.NewBreakers(2)))
	for i := 0; i < 5; i++ {
		var v message
		if err := client.Get(context.Background(), server.URL, &v); !errors.Is(err, ErrNotFound) {
			t.Fatalf("call %d: err = %v, want ErrNotFound", i, err)
		}
	}
}

func TestClientBreakerTripsOnServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(nil, WithRetries(1, 0), WithBreakers(httputil.NewBreakers(2)))
	var v message
	_ = client.Get(context.Background(), server.URL, &v)
	_ = client.Get(context.Background(), server.URL, &v)
	err := client.Get(context.Background(), server.URL, &v)

	if !errors.Is(err, httputil.ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestClientRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(message{})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(nil, WithRateLimit(0.001, 1))

	var v message
	if err := client.Get(ctx, server.URL, &v); err != nil {
		t.Fatalf("first Get() error: %v", err)
	}
	cancel()
	if err := client.Get(ctx, server.URL, &v); err == nil {
		t.Error("second Get() should fail once the burst is spent and ctx is cancelled")
	}
}

func TestClientDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	var v message
	if err := NewClient(nil).Get(context.Background(), server.URL, &v); err == nil {
		t.Error("expected decode error")
	}
}

func TestNormalizeRepoURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"git+https://github.com/expressjs/express.git", "https://github.com/expressjs/express"},
		{"git://github.com/lodash/lodash.git", "https://github.com/lodash/lodash"},
		{"git@github.com:facebook/react.git", "https://github.com/facebook/react"},
		{"github:sindresorhus/got", "https://github.com/sindresorhus/got"},
	}
	for _, tt := range tests {
		if got := NormalizeRepoURL(tt.in); got != tt.want {
			t.Errorf("NormalizeRepoURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
