// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Document store backends.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// DocumentStoreConfig selects and locates the document store backend.
type DocumentStoreConfig interface {
	DatabaseConfig
	GetDocumentStoreBackend() string
	GetMongoURI() string
	GetMongoDatabase() string
}

// RedisConfig provides redis connection settings.
type RedisConfig interface {
	GetRedisURL() string
	IsRedisEnabled() bool
}

// SchedulerConfig provides settings for the asynq worker.
type SchedulerConfig interface {
	RedisConfig
	GetSchedulerQueue() string
	GetSchedulerConcurrency() int
	GetQuoteExpirySweepInterval() time.Duration
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// GuestConfig provides settings for the guest identity cookie.
type GuestConfig interface {
	GetGuestCookieName() string
	GetGuestCookieMaxAge() time.Duration
	GetGuestCookieDomain() string
	GetGuestCookieSecure() bool
	GetGuestCookieSameSite() http.SameSite
}

// RateLimitConfig provides sliding window quotas for public endpoints.
type RateLimitConfig interface {
	GetDraftRateLimit() int
	GetDraftRateWindow() time.Duration
	GetVehicleRateLimit() int
	GetVehicleRateWindow() time.Duration
	GetAPIRatePerSecond() float64
	GetAPIRateBurst() int
}

// MarketplaceConfig provides job and quote defaults.
type MarketplaceConfig interface {
	GetQuoteDefaultMax() int
	GetQuoteValidity() time.Duration
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// MinIOConfig provides settings for MinIO S3-compatible storage.
type MinIOConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinIOMaxFileSize() int64
	GetMinioBucketJobPhotos() string
	GetMinioBucketMessageAttachments() string
	IsMinIOEnabled() bool
}

// SMSConfig provides settings for the SMS gateway.
type SMSConfig interface {
	GetSMSGatewayURL() string
	GetSMSGatewayKey() string
	GetSMSGatewayDeviceID() string
	IsSMSEnabled() bool
}

// VehicleConfig provides settings for the vehicle registry API.
type VehicleConfig interface {
	GetVehicleAPIURL() string
	GetVehicleAPIKey() string
	IsVehicleLookupEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                           string
	HTTPAddr                      string
	DocumentStoreBackend          string
	DatabaseURL                   string
	MongoURI                      string
	MongoDatabase                 string
	RedisURL                      string
	SchedulerQueue                string
	SchedulerConcurrency          int
	QuoteExpirySweepInterval      time.Duration
	JWTAccessSecret               string
	CORSAllowAll                  bool
	CORSOrigins                   []string
	CORSAllowCreds                bool
	AppBaseURL                    string
	GuestCookieName               string
	GuestCookieMaxAge             time.Duration
	GuestCookieDomain             string
	GuestCookieSecure             bool
	GuestCookieSameSite           http.SameSite
	DraftRateLimit                int
	DraftRateWindow               time.Duration
	VehicleRateLimit              int
	VehicleRateWindow             time.Duration
	APIRatePerSecond              float64
	APIRateBurst                  int
	QuoteDefaultMax               int
	QuoteValidity                 time.Duration
	EmailEnabled                  bool
	SMTPHost                      string
	SMTPPort                      int
	SMTPUsername                  string
	SMTPPassword                  string
	EmailFromName                 string
	EmailFromAddress              string
	MinIOEndpoint                 string
	MinIOAccessKey                string
	MinIOSecretKey                string
	MinIOUseSSL                   bool
	MinIOMaxFileSize              int64
	MinioBucketJobPhotos          string
	MinioBucketMessageAttachments string
	VehicleAPIURL                 string
	VehicleAPIKey                 string
	SMSGatewayURL                 string
	SMSGatewayKey                 string
	SMSGatewayDeviceID            string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// DocumentStoreConfig implementation
func (c *Config) GetDocumentStoreBackend() string { return c.DocumentStoreBackend }
func (c *Config) GetMongoURI() string             { return c.MongoURI }
func (c *Config) GetMongoDatabase() string        { return c.MongoDatabase }

// RedisConfig implementation
func (c *Config) GetRedisURL() string  { return c.RedisURL }
func (c *Config) IsRedisEnabled() bool { return c.RedisURL != "" }

// SchedulerConfig implementation
func (c *Config) GetSchedulerQueue() string                  { return c.SchedulerQueue }
func (c *Config) GetSchedulerConcurrency() int               { return c.SchedulerConcurrency }
func (c *Config) GetQuoteExpirySweepInterval() time.Duration { return c.QuoteExpirySweepInterval }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// GuestConfig implementation
func (c *Config) GetGuestCookieName() string            { return c.GuestCookieName }
func (c *Config) GetGuestCookieMaxAge() time.Duration   { return c.GuestCookieMaxAge }
func (c *Config) GetGuestCookieDomain() string          { return c.GuestCookieDomain }
func (c *Config) GetGuestCookieSecure() bool            { return c.GuestCookieSecure }
func (c *Config) GetGuestCookieSameSite() http.SameSite { return c.GuestCookieSameSite }

// RateLimitConfig implementation
func (c *Config) GetDraftRateLimit() int              { return c.DraftRateLimit }
func (c *Config) GetDraftRateWindow() time.Duration   { return c.DraftRateWindow }
func (c *Config) GetVehicleRateLimit() int            { return c.VehicleRateLimit }
func (c *Config) GetVehicleRateWindow() time.Duration { return c.VehicleRateWindow }
func (c *Config) GetAPIRatePerSecond() float64        { return c.APIRatePerSecond }
func (c *Config) GetAPIRateBurst() int                { return c.APIRateBurst }

// MarketplaceConfig implementation
func (c *Config) GetQuoteDefaultMax() int         { return c.QuoteDefaultMax }
func (c *Config) GetQuoteValidity() time.Duration { return c.QuoteValidity }

// EmailConfig implementation
func (c *Config) GetEmailEnabled() bool       { return c.EmailEnabled }
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }

// NotificationConfig implementation
func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// MinIOConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetMinIOMaxFileSize() int64 { return c.MinIOMaxFileSize }
func (c *Config) GetMinioBucketJobPhotos() string {
	return c.MinioBucketJobPhotos
}
func (c *Config) GetMinioBucketMessageAttachments() string {
	return c.MinioBucketMessageAttachments
}
func (c *Config) IsMinIOEnabled() bool { return c.MinIOEndpoint != "" }

// VehicleConfig implementation
func (c *Config) GetVehicleAPIURL() string     { return c.VehicleAPIURL }
func (c *Config) GetVehicleAPIKey() string     { return c.VehicleAPIKey }
func (c *Config) IsVehicleLookupEnabled() bool { return c.VehicleAPIURL != "" }

// SMSConfig implementation
func (c *Config) GetSMSGatewayURL() string      { return c.SMSGatewayURL }
func (c *Config) GetSMSGatewayKey() string      { return c.SMSGatewayKey }
func (c *Config) GetSMSGatewayDeviceID() string { return c.SMSGatewayDeviceID }
func (c *Config) IsSMSEnabled() bool            { return c.SMSGatewayURL != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	guestCookieSecure := strings.EqualFold(getEnv("GUEST_COOKIE_SECURE", ""), "true")
	if getEnv("GUEST_COOKIE_SECURE", "") == "" {
		guestCookieSecure = strings.EqualFold(getEnv("APP_ENV", "development"), "production")
	}

	cfg := &Config{
		Env:                           getEnv("APP_ENV", "development"),
		HTTPAddr:                      getEnv("HTTP_ADDR", ":8080"),
		DocumentStoreBackend:          strings.ToLower(getEnv("DOCSTORE_BACKEND", BackendPostgres)),
		DatabaseURL:                   getEnv("DATABASE_URL", ""),
		MongoURI:                      getEnv("MONGO_URI", ""),
		MongoDatabase:                 getEnv("MONGO_DATABASE", "marketplace"),
		RedisURL:                      getEnv("REDIS_URL", ""),
		SchedulerQueue:                getEnv("SCHEDULER_QUEUE", "default"),
		SchedulerConcurrency:          mustInt(getEnv("SCHEDULER_CONCURRENCY", "5")),
		QuoteExpirySweepInterval:      mustDuration(getEnv("QUOTE_EXPIRY_SWEEP_INTERVAL", "15m")),
		JWTAccessSecret:               getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:                  corsAllowAll,
		CORSOrigins:                   corsOrigins,
		CORSAllowCreds:                strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:                    getEnv("APP_BASE_URL", "http://localhost:4200"),
		GuestCookieName:               getEnv("GUEST_COOKIE_NAME", "guest_id"),
		GuestCookieMaxAge:             mustDuration(getEnv("GUEST_COOKIE_MAX_AGE", "4320h")),
		GuestCookieDomain:             getEnv("GUEST_COOKIE_DOMAIN", ""),
		GuestCookieSecure:             guestCookieSecure,
		GuestCookieSameSite:           parseSameSite(getEnv("GUEST_COOKIE_SAMESITE", "Lax")),
		DraftRateLimit:                mustInt(getEnv("DRAFT_RATE_LIMIT", "10")),
		DraftRateWindow:               mustDuration(getEnv("DRAFT_RATE_WINDOW", "1h")),
		VehicleRateLimit:              mustInt(getEnv("VEHICLE_RATE_LIMIT", "30")),
		VehicleRateWindow:             mustDuration(getEnv("VEHICLE_RATE_WINDOW", "1h")),
		APIRatePerSecond:              mustFloat(getEnv("API_RATE_PER_SECOND", "20")),
		APIRateBurst:                  mustInt(getEnv("API_RATE_BURST", "40")),
		QuoteDefaultMax:               mustInt(getEnv("QUOTE_DEFAULT_MAX", "10")),
		QuoteValidity:                 mustDuration(getEnv("QUOTE_VALIDITY", "168h")),
		EmailEnabled:                  emailEnabled && smtpHost != "",
		SMTPHost:                      smtpHost,
		SMTPPort:                      mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:                  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:                  getEnv("SMTP_PASSWORD", ""),
		EmailFromName:                 getEnv("EMAIL_FROM_NAME", "Marketplace"),
		EmailFromAddress:              getEnv("EMAIL_FROM_ADDRESS", ""),
		MinIOEndpoint:                 getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:                getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:                getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:                   strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinIOMaxFileSize:              mustInt64(getEnv("MINIO_MAX_FILE_SIZE", "26214400")),
		MinioBucketJobPhotos:          getEnv("MINIO_BUCKET_JOB_PHOTOS", "job-photos"),
		MinioBucketMessageAttachments: getEnv("MINIO_BUCKET_MESSAGE_ATTACHMENTS", "message-attachments"),
		VehicleAPIURL:                 getEnv("VEHICLE_API_URL", ""),
		VehicleAPIKey:                 getEnv("VEHICLE_API_KEY", ""),
		SMSGatewayURL:                 getEnv("SMS_GATEWAY_URL", ""),
		SMSGatewayKey:                 getEnv("SMS_GATEWAY_KEY", ""),
		SMSGatewayDeviceID:            getEnv("SMS_GATEWAY_DEVICE_ID", ""),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DocumentStoreBackend {
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when DOCSTORE_BACKEND is postgres")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required when DOCSTORE_BACKEND is mongo")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown DOCSTORE_BACKEND %q", c.DocumentStoreBackend)
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.EmailEnabled && c.EmailFromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if c.DraftRateLimit <= 0 || c.DraftRateWindow <= 0 {
		return fmt.Errorf("DRAFT_RATE_LIMIT and DRAFT_RATE_WINDOW must be positive")
	}
	if c.QuoteDefaultMax <= 0 {
		return fmt.Errorf("QUOTE_DEFAULT_MAX must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func mustInt64(value string) int64 {
	result, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}
