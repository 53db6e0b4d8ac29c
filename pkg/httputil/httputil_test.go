package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRetryNonRetryableReturnsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryRetryableEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("503"))
		}
		return nil
	})
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		return Retryable(errors.New("timeout"))
	})
	if !IsRetryable(err) {
		t.Errorf("err = %v, want retryable", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 5, time.Hour, func() error {
		return Retryable(errors.New("timeout"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestRetryableNil(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}
}

func TestBreakersTripAfterThreshold(t *testing.T) {
	b := NewBreakers(2)
	fail := errors.New("502")

	for i := 0; i < 2; i++ {
		if err := b.Do("registry.example", func() error { return fail }); !errors.Is(err, fail) {
			t.Fatalf("call %d: err = %v, want %v", i, err, fail)
		}
	}

	called := false
	err := b.Do("registry.example", func() error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("fn should not run while the breaker is open")
	}
	if got := b.States()["registry.example"]; got != "open" {
		t.Errorf("state = %q, want open", got)
	}

	if err := b.Do("other.example", func() error { return nil }); err != nil {
		t.Errorf("other host err = %v, want nil", err)
	}
	if got := b.States()["other.example"]; got != "closed" {
		t.Errorf("other state = %q, want closed", got)
	}
}

func TestTransportDialsThroughCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &http.Client{Transport: NewTransport(ctx, time.Minute)}
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
}
