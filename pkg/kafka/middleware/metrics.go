package middleware

import (
	"context"
	"sync/atomic"
	"time"

	"meistro/pkg/kafka"
)

// Metrics counts publishes and handled messages. Counters are atomic so a
// single instance can be shared across producers and consumers.
type Metrics struct {
	PublishedTotal   atomic.Int64
	PublishErrors    atomic.Int64
	HandledTotal     atomic.Int64
	HandleErrors     atomic.Int64
	publishDurations atomic.Int64 // cumulative milliseconds
	handleDurations  atomic.Int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Producer() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.publishDurations.Add(time.Since(start).Milliseconds())
		m.PublishedTotal.Add(1)
		if err != nil {
			m.PublishErrors.Add(1)
		}
		return err
	}
}

func (m *Metrics) Consumer() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		m.handleDurations.Add(time.Since(start).Milliseconds())
		m.HandledTotal.Add(1)
		if err != nil {
			m.HandleErrors.Add(1)
		}
		return err
	}
}

// AvgPublishLatencyMs returns the mean publish latency in milliseconds.
func (m *Metrics) AvgPublishLatencyMs() int64 {
	total := m.PublishedTotal.Load()
	if total == 0 {
		return 0
	}
	return m.publishDurations.Load() / total
}

// AvgHandleLatencyMs returns the mean handler latency in milliseconds.
func (m *Metrics) AvgHandleLatencyMs() int64 {
	total := m.HandledTotal.Load()
	if total == 0 {
		return 0
	}
	return m.handleDurations.Load() / total
}
