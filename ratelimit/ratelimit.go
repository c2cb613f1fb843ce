// Package ratelimit provides named token-bucket limiters for the external
// APIs the downloader talks to, with per-service stats for the rate-stats
// command.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// recentWindow is how far back a call still counts towards CallsLastMinute.
const recentWindow = time.Minute

// Limiter is a token-bucket limiter for one external service. Safe for
// concurrent use.
type Limiter struct {
	limiter *rate.Limiter

	mu    sync.Mutex
	calls []time.Time
}

func NewLimiter(callsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(callsPerSecond), burst),
		mu:      sync.Mutex{},
		calls:   nil,
	}
}

// Wait blocks until a token is available or the context is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); nil != err {
		return fmt.Errorf("failed to acquire rate limit token: %w", err)
	}

	l.record()

	return nil
}

// Allow reports whether a call may proceed right now, without blocking.
func (l *Limiter) Allow() bool {
	if !l.limiter.Allow() {
		return false
	}

	l.record()

	return true
}

func (l *Limiter) record() {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.calls[:0]
	for _, t := range l.calls {
		if now.Sub(t) < recentWindow {
			kept = append(kept, t)
		}
	}
	l.calls = append(kept, now)
}

// Stats is a point-in-time snapshot of one limiter.
type Stats struct {
	CallsLastMinute int
	TokensAvailable int
	Burst           int
	Rate            float64
}

func (l *Limiter) Stats() Stats {
	now := time.Now()

	l.mu.Lock()
	recent := 0
	for _, t := range l.calls {
		if now.Sub(t) < recentWindow {
			recent++
		}
	}
	l.mu.Unlock()

	return Stats{
		CallsLastMinute: recent,
		TokensAvailable: int(l.limiter.Tokens()),
		Burst:           l.limiter.Burst(),
		Rate:            float64(l.limiter.Limit()),
	}
}

// Service names the limiters in display order for the rate-stats command.
type Service struct {
	Name    string
	Limiter *Limiter
}

// Set holds one limiter per external service.
type Set struct {
	Spotify  *Limiter
	Songlink *Limiter
	DAB      *Limiter
}

// NewSet builds the default limiter set. Spotify is deliberately slow since
// playlist fetching fans out into many internal API calls; song.link enforces
// roughly nine requests per minute on its free tier.
func NewSet() *Set {
	return &Set{
		Spotify:  NewLimiter(1.0, 3),
		Songlink: NewLimiter(0.15, 2),
		DAB:      NewLimiter(2.0, 5),
	}
}

func (s *Set) All() []Service {
	return []Service{
		{Name: "spotify", Limiter: s.Spotify},
		{Name: "songlink", Limiter: s.Songlink},
		{Name: "dab", Limiter: s.DAB},
	}
}
