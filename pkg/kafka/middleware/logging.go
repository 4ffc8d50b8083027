package middleware

import (
	"context"
	"time"

	"meistro/pkg/kafka"
	"meistro/pkg/logger"
)

// ProducerLogging logs every publish with its outcome and duration.
func ProducerLogging(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		duration := time.Since(start)

		if err != nil {
			log.Error("Message publish failed",
				"key", msg.Key,
				"event_type", msg.GetEventType(),
				"event_id", msg.GetEventID(),
				"duration_ms", duration.Milliseconds(),
				"error", err)
			return err
		}

		log.Debug("Message published",
			"key", msg.Key,
			"event_type", msg.GetEventType(),
			"event_id", msg.GetEventID(),
			"duration_ms", duration.Milliseconds())
		return nil
	}
}

// ConsumerLogging logs every handled message with its outcome and duration.
func ConsumerLogging(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		duration := time.Since(start)

		if err != nil {
			log.Error("Message handling failed",
				"key", msg.Key,
				"event_type", msg.GetEventType(),
				"event_id", msg.GetEventID(),
				"duration_ms", duration.Milliseconds(),
				"error", err)
			return err
		}

		log.Debug("Message handled",
			"key", msg.Key,
			"event_type", msg.GetEventType(),
			"event_id", msg.GetEventID(),
			"duration_ms", duration.Milliseconds())
		return nil
	}
}
