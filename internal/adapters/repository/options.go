package repository

import "time"

// Option applies a configuration option to the SessionStore.
type Option func(*SessionStore)

// WithShardCount sets how many independently locked shards hold sessions.
func WithShardCount(n int) Option {
	return func(s *SessionStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithSessionTTL sets how long an idle session lives. Zero disables expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *SessionStore) {
		if ttl >= 0 {
			s.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often idle sessions are swept and gauges refreshed.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *SessionStore) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *SessionStore) {
		if now != nil {
			s.now = now
		}
	}
}
