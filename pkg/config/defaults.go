package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "meistro"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 30
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultConfirmMaxAttempts  = 3
	DefaultConfirmRetryBackoff = 100 * time.Millisecond
	DefaultConfirmLockTTL      = 10 * time.Second

	// Older messages are irrelevant once a read marker moves past them, so
	// unread counting scans at most this many recent messages per
	// conversation. A deliberate approximation, not an exact count.
	DefaultUnreadScanLimit = 100

	DefaultUnreadFanout     = 8
	DefaultOverlapScanLimit = 30

	DefaultBookingEventsTopic    = "meistro.booking-events"
	DefaultBookingEventsDLQTopic = "meistro.booking-events.dlq"
	DefaultChatEventsTopic       = "meistro.chat-events"
	DefaultChatEventsDLQTopic    = "meistro.chat-events.dlq"

	// Empty means emails are logged to the console instead of delivered.
	DefaultSMTPAddr = ""
	DefaultSMTPFrom = "no-reply@meistro.app"

	DefaultPrefsPortalURL = "https://meistro.app/settings/notifications"

	DefaultPaginationLimit = 100
)
