package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvInternalAPISecret = "INTERNAL_API_SECRET"
	EnvAuthIntrospectURL = "AUTH_INTROSPECT_URL"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvConfirmMaxAttempts  = "CONFIRM_MAX_ATTEMPTS"
	EnvConfirmRetryBackoff = "CONFIRM_RETRY_BACKOFF"
	EnvConfirmLockTTL      = "CONFIRM_LOCK_TTL"

	EnvUnreadScanLimit  = "UNREAD_SCAN_LIMIT"
	EnvUnreadFanout     = "UNREAD_FANOUT"
	EnvOverlapScanLimit = "OVERLAP_SCAN_LIMIT"

	EnvBookingEventsTopic    = "BOOKING_EVENTS_TOPIC"
	EnvBookingEventsDLQTopic = "BOOKING_EVENTS_DLQ_TOPIC"
	EnvChatEventsTopic       = "CHAT_EVENTS_TOPIC"
	EnvChatEventsDLQTopic    = "CHAT_EVENTS_DLQ_TOPIC"

	EnvSMTPAddr = "SMTP_ADDR"
	EnvSMTPFrom = "SMTP_FROM"

	EnvPrefsPortalURL = "PREFS_PORTAL_URL"
)
