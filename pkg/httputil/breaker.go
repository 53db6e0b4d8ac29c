package httputil

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

// ErrCircuitOpen is returned when a host's breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker open")

// Breakers keeps one circuit breaker per upstream host. A breaker trips
// after threshold consecutive failures and re-probes with exponential
// backoff.
type Breakers struct {
	mu        sync.RWMutex
	breakers  map[string]*circuit.Breaker
	threshold int64
}

// NewBreakers creates a breaker set. threshold <= 0 defaults to 5.
func NewBreakers(threshold int64) *Breakers {
	if threshold <= 0 {
		threshold = 5
	}
	return &Breakers{
		breakers:  make(map[string]*circuit.Breaker),
		threshold: threshold,
	}
}

func (b *Breakers) get(host string) *circuit.Breaker {
	b.mu.RLock()
	br, ok := b.breakers[host]
	b.mu.RUnlock()
	if ok {
		return br
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if br, ok := b.breakers[host]; ok {
		return br
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 10 * time.Second
	expBackoff.MaxInterval = 2 * time.Minute
	expBackoff.Multiplier = 2.0
	expBackoff.Reset()

	br = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ThresholdTripFunc(b.threshold),
	})
	b.breakers[host] = br
	return br
}

// Do runs fn through host's breaker. fn must return a non-nil error only for
// upstream failures (network errors, 5xx); outcomes such as a 404 that say
// nothing about upstream health should be reported through fn's closure
// instead, so they do not count toward tripping.
func (b *Breakers) Do(host string, fn func() error) error {
	br := b.get(host)
	if !br.Ready() {
		return fmt.Errorf("%s: %w", host, ErrCircuitOpen)
	}
	return br.Call(fn, 0)
}

// States reports "open" or "closed" per host, for health endpoints.
func (b *Breakers) States() map[string]string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	states := make(map[string]string, len(b.breakers))
	for host, br := range b.breakers {
		if br.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}
