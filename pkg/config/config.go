package config

import (
	"fmt"
	"meistro/pkg/client"
	"meistro/pkg/logger"
	"os"
	"regexp"
	"strconv"
	"time"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	// Shared secret for the trusted server-to-server path. Requests signed
	// with it may carry a pre-resolved acting user; never handed to clients.
	InternalAPISecret string

	// Identity provider endpoint used to resolve bearer tokens to user IDs.
	AuthIntrospectURL string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Confirm path: bounded retries over the transactional conflict check.
	ConfirmMaxAttempts  int
	ConfirmRetryBackoff time.Duration
	ConfirmLockTTL      time.Duration

	// Unread aggregation: per-conversation scan cap and fan-out width.
	UnreadScanLimit  int
	UnreadFanout     int
	OverlapScanLimit int

	BookingEventsTopic    string
	BookingEventsDLQTopic string
	ChatEventsTopic       string
	ChatEventsDLQTopic    string

	SMTPAddr string
	SMTPFrom string

	// Base URL for the email preference portal linked from mail footers.
	PrefsPortalURL string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		InternalAPISecret: getEnvStr(EnvInternalAPISecret, ""),
		AuthIntrospectURL: getEnvStr(EnvAuthIntrospectURL, ""),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ConfirmMaxAttempts:  getEnvNum(EnvConfirmMaxAttempts, DefaultConfirmMaxAttempts),
		ConfirmRetryBackoff: getEnvDuration(EnvConfirmRetryBackoff, DefaultConfirmRetryBackoff),
		ConfirmLockTTL:      getEnvDuration(EnvConfirmLockTTL, DefaultConfirmLockTTL),

		UnreadScanLimit:  getEnvNum(EnvUnreadScanLimit, DefaultUnreadScanLimit),
		UnreadFanout:     getEnvNum(EnvUnreadFanout, DefaultUnreadFanout),
		OverlapScanLimit: getEnvNum(EnvOverlapScanLimit, DefaultOverlapScanLimit),

		BookingEventsTopic:    getEnvStr(EnvBookingEventsTopic, DefaultBookingEventsTopic),
		BookingEventsDLQTopic: getEnvStr(EnvBookingEventsDLQTopic, DefaultBookingEventsDLQTopic),
		ChatEventsTopic:       getEnvStr(EnvChatEventsTopic, DefaultChatEventsTopic),
		ChatEventsDLQTopic:    getEnvStr(EnvChatEventsDLQTopic, DefaultChatEventsDLQTopic),

		SMTPAddr: getEnvStr(EnvSMTPAddr, DefaultSMTPAddr),
		SMTPFrom: getEnvStr(EnvSMTPFrom, DefaultSMTPFrom),

		PrefsPortalURL: getEnvStr(EnvPrefsPortalURL, DefaultPrefsPortalURL),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.ConfirmMaxAttempts <= 0 {
		errors = append(errors, fmt.Sprintf("ConfirmMaxAttempts must be positive, got: %d", cfg.ConfirmMaxAttempts))
	}
	if cfg.ConfirmRetryBackoff <= 0 {
		errors = append(errors, fmt.Sprintf("ConfirmRetryBackoff must be positive, got: %s", cfg.ConfirmRetryBackoff))
	}
	if cfg.ConfirmLockTTL <= 0 {
		errors = append(errors, fmt.Sprintf("ConfirmLockTTL must be positive, got: %s", cfg.ConfirmLockTTL))
	}

	if cfg.UnreadScanLimit <= 0 {
		errors = append(errors, fmt.Sprintf("UnreadScanLimit must be positive, got: %d", cfg.UnreadScanLimit))
	}
	if cfg.UnreadFanout <= 0 {
		errors = append(errors, fmt.Sprintf("UnreadFanout must be positive, got: %d", cfg.UnreadFanout))
	}
	if cfg.OverlapScanLimit <= 0 {
		errors = append(errors, fmt.Sprintf("OverlapScanLimit must be positive, got: %d", cfg.OverlapScanLimit))
	}

	if cfg.BookingEventsTopic == "" {
		errors = append(errors, "BookingEventsTopic cannot be empty")
	}
	if cfg.ChatEventsTopic == "" {
		errors = append(errors, "ChatEventsTopic cannot be empty")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"internal_secret_set", cfg.InternalAPISecret != "",
		"auth_introspect_url", cfg.AuthIntrospectURL,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"confirm_max_attempts", cfg.ConfirmMaxAttempts,
		"confirm_retry_backoff", cfg.ConfirmRetryBackoff,
		"confirm_lock_ttl", cfg.ConfirmLockTTL,
		"unread_scan_limit", cfg.UnreadScanLimit,
		"unread_fanout", cfg.UnreadFanout,
		"overlap_scan_limit", cfg.OverlapScanLimit,
		"booking_events_topic", cfg.BookingEventsTopic,
		"chat_events_topic", cfg.ChatEventsTopic,
		"smtp_addr", cfg.SMTPAddr,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown()
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
