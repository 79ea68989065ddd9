package app

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Issuer    string // Required: expected issuer of incoming bearer tokens
	JWTSecret string // Required: HS256 secret shared with the session service (min 32 bytes)

	TOTPIssuer string // Display name in authenticator apps (default: Aegis)

	DatabaseFile string // Path to SQLite database file (default: ./mfa.db)
	PepperFile   string // Path to the recovery-code hashing pepper (default: ./pepper)
	SealKeyFile  string // Path to the 32-byte TOTP secret sealing key (default: ./sealkey)

	RedisAddr     string        // Optional: host:port of Redis; empty disables the read cache
	RedisPassword string        // Optional
	CacheTTL      time.Duration // Read cache TTL (default: 30s)

	SMTPHost string // Optional: SMTP relay for email codes; empty routes email to the log
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	DeviceTrustTTL       time.Duration // "Remember this device" window (default: 720h)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	return Config{
		Issuer:     getEnvOrDefault("MFA_ISSUER", "aegis-mfa"),
		JWTSecret:  os.Getenv("MFA_JWT_SECRET"),
		TOTPIssuer: getEnvOrDefault("MFA_TOTP_ISSUER", "Aegis"),

		DatabaseFile: getEnvOrDefault("MFA_DATABASE_FILE", "mfa.db"),
		PepperFile:   getEnvOrDefault("MFA_PEPPER_FILE", "pepper"),
		SealKeyFile:  getEnvOrDefault("MFA_SEAL_KEY_FILE", "sealkey"),

		RedisAddr:     os.Getenv("MFA_REDIS_ADDR"),
		RedisPassword: os.Getenv("MFA_REDIS_PASSWORD"),
		CacheTTL:      getEnvDurationOrDefault("MFA_CACHE_TTL", 30*time.Second),

		SMTPHost: os.Getenv("MFA_SMTP_HOST"),
		SMTPPort: getEnvIntOrDefault("MFA_SMTP_PORT", 587),
		SMTPUser: os.Getenv("MFA_SMTP_USER"),
		SMTPPass: os.Getenv("MFA_SMTP_PASS"),
		SMTPFrom: getEnvOrDefault("MFA_SMTP_FROM", "no-reply@localhost"),

		DeviceTrustTTL:       getEnvDurationOrDefault("MFA_DEVICE_TRUST_TTL", 30*24*time.Hour),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", time.Hour),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
