package rag

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records latency accounting for the generation pipeline.
type Metrics struct {
	requests       metric.Int64Counter
	retrievalTime  metric.Float64Histogram
	firstToken     metric.Float64Histogram
	responseTime   metric.Float64Histogram
	charsPerSecond metric.Float64Histogram
}

// NewMetrics registers the rag instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("documindr/rag")

	requests, err := meter.Int64Counter("rag.requests",
		metric.WithDescription("Generation requests by kind"))
	if err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}
	retrievalTime, err := meter.Float64Histogram("rag.retrieval.duration",
		metric.WithDescription("Hybrid retrieval duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create retrieval histogram: %w", err)
	}
	firstToken, err := meter.Float64Histogram("rag.generation.time_to_first_token",
		metric.WithDescription("Latency until the first generated token"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create first token histogram: %w", err)
	}
	responseTime, err := meter.Float64Histogram("rag.generation.duration",
		metric.WithDescription("Total generation duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create response histogram: %w", err)
	}
	charsPerSecond, err := meter.Float64Histogram("rag.generation.chars_per_second",
		metric.WithDescription("Generation throughput after the first token"))
	if err != nil {
		return nil, fmt.Errorf("create throughput histogram: %w", err)
	}

	return &Metrics{
		requests:       requests,
		retrievalTime:  retrievalTime,
		firstToken:     firstToken,
		responseTime:   responseTime,
		charsPerSecond: charsPerSecond,
	}, nil
}

func (m *Metrics) recordRequest(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) recordRetrieval(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.retrievalTime.Record(ctx, elapsed.Seconds())
}

func (m *Metrics) recordGeneration(ctx context.Context, kind string, ttft, total time.Duration, throughput float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.firstToken.Record(ctx, ttft.Seconds(), attrs)
	m.responseTime.Record(ctx, total.Seconds(), attrs)
	m.charsPerSecond.Record(ctx, throughput, attrs)
}
