// Package httputil provides the resilience plumbing shared by the upstream
// API clients.
//
//   - [Retry]: exponential backoff with jitter for errors marked [Retryable]
//   - [Breakers]: one circuit breaker per upstream host
//   - [NewTransport]: an http.Transport that caches DNS lookups
//
// None of these know about package registries; the integrations package
// decides which failures are retryable and which trip a breaker.
package httputil
