package perf

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/huangsam/dashcache/core/perf"

// OTelSink exports instrumentation events as OpenTelemetry metrics.
type OTelSink struct {
	hits     metric.Int64Counter
	misses   metric.Int64Counter
	fetches  metric.Int64Counter
	errors   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewOTelSink registers the dashcache instruments on meter.
// A nil meter uses the global meter provider.
func NewOTelSink(meter metric.Meter) (*OTelSink, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	var (
		s   OTelSink
		err error
	)
	s.hits, err = meter.Int64Counter(
		"dashcache.cache.hits",
		metric.WithDescription("Number of subscriptions served from the result store"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.hits counter: %w", err)
	}

	s.misses, err = meter.Int64Counter(
		"dashcache.cache.misses",
		metric.WithDescription("Number of subscriptions that waited for a fetch"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache.misses counter: %w", err)
	}

	s.fetches, err = meter.Int64Counter(
		"dashcache.fetch.calls",
		metric.WithDescription("Number of fetch function invocations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch.calls counter: %w", err)
	}

	s.errors, err = meter.Int64Counter(
		"dashcache.fetch.errors",
		metric.WithDescription("Number of fetches that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch.errors counter: %w", err)
	}

	s.duration, err = meter.Float64Histogram(
		"dashcache.fetch.duration",
		metric.WithDescription("Fetch duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch.duration histogram: %w", err)
	}

	return &s, nil
}

func labelSet(label string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("label", label))
}

// CacheHit implements Sink.
func (s *OTelSink) CacheHit(label string) {
	s.hits.Add(context.Background(), 1, labelSet(label))
}

// CacheMiss implements Sink.
func (s *OTelSink) CacheMiss(label string) {
	s.misses.Add(context.Background(), 1, labelSet(label))
}

// FetchDone implements Sink.
func (s *OTelSink) FetchDone(label string, d time.Duration, err error) {
	ctx := context.Background()
	attrs := labelSet(label)
	s.fetches.Add(ctx, 1, attrs)
	s.duration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		s.errors.Add(ctx, 1, attrs)
	}
}
