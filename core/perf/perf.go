// Package perf records cache hit/miss counts and fetch timings by caller label.
package perf

import (
	"log/slog"
	"time"
)

// Sink receives instrumentation events from the coordinator.
// Implementations must be safe for concurrent use.
type Sink interface {
	// CacheHit is called when a subscription is served from the store.
	CacheHit(label string)

	// CacheMiss is called when a subscription has to wait for a fetch.
	CacheMiss(label string)

	// FetchDone is called once per fetch with its duration and outcome.
	FetchDone(label string, d time.Duration, err error)
}

// Noop discards every event.
type Noop struct{}

func (Noop) CacheHit(string)                        {}
func (Noop) CacheMiss(string)                       {}
func (Noop) FetchDone(string, time.Duration, error) {}

// multiSink fans events out to several sinks in order.
type multiSink []Sink

// Multi returns a Sink that forwards every event to each non-nil sink.
func Multi(sinks ...Sink) Sink {
	out := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return Noop{}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

func (m multiSink) CacheHit(label string) {
	for _, s := range m {
		s.CacheHit(label)
	}
}

func (m multiSink) CacheMiss(label string) {
	for _, s := range m {
		s.CacheMiss(label)
	}
}

func (m multiSink) FetchDone(label string, d time.Duration, err error) {
	for _, s := range m {
		s.FetchDone(label, d, err)
	}
}

// safeSink recovers panics raised by the wrapped sink.
type safeSink struct {
	inner  Sink
	logger *slog.Logger
}

// Safe wraps s so that a panicking sink never reaches the caller.
// Recovered panics are logged at debug level on logger, which may be nil.
func Safe(s Sink, logger *slog.Logger) Sink {
	if s == nil {
		return Noop{}
	}
	if _, ok := s.(Noop); ok {
		return s
	}
	if already, ok := s.(*safeSink); ok {
		return already
	}
	return &safeSink{inner: s, logger: logger}
}

func (s *safeSink) CacheHit(label string) {
	defer s.recover("cache_hit", label)
	s.inner.CacheHit(label)
}

func (s *safeSink) CacheMiss(label string) {
	defer s.recover("cache_miss", label)
	s.inner.CacheMiss(label)
}

func (s *safeSink) FetchDone(label string, d time.Duration, err error) {
	defer s.recover("fetch_done", label)
	s.inner.FetchDone(label, d, err)
}

func (s *safeSink) recover(event, label string) {
	if r := recover(); r != nil && s.logger != nil {
		s.logger.Debug("instrumentation sink panicked",
			slog.String("event", event),
			slog.String("label", label),
			slog.Any("panic", r))
	}
}
