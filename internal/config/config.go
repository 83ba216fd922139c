package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	// Decision engine
	NudgesEnabled         bool
	ExplorationRate       float64
	MinHoursBetweenNudges int
	MaxNudgesPerDay       int
	NudgeTTL              time.Duration
	LearningWindowDays    int

	// Remote scorer (optional ML scoring service)
	RemoteScorerURL     string
	RemoteScorerAPIKey  string
	RemoteScorerTimeout time.Duration

	// Trained-weights artifact (local path or s3://bucket/key)
	ModelArtifactURI string

	// LLM message generation
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string

	// Per-patient run lock
	RedisAddr      string
	RedisPassword  string
	RedisTLS       bool
	PatientLockTTL time.Duration

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Outcome ingestion worker
	OutcomeQueueURL string
	SweepInterval   time.Duration

	// Operator alerting
	AlertEmail        string
	SESFromEmail      string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	// Per-IP limit on the public HTTP surface; 0 disables it.
	PublicRateLimit float64
	PublicRateBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		NudgesEnabled:         getEnvAsBool("NUDGES_ENABLED", true),
		ExplorationRate:       getEnvAsFloat("NUDGE_EXPLORATION_RATE", 0.1),
		MinHoursBetweenNudges: getEnvAsInt("MIN_HOURS_BETWEEN_NUDGES", 4),
		MaxNudgesPerDay:       getEnvAsInt("MAX_NUDGES_PER_DAY", 3),
		NudgeTTL:              getEnvAsDuration("NUDGE_TTL", 24*time.Hour),
		LearningWindowDays:    getEnvAsInt("LEARNING_WINDOW_DAYS", 30),

		RemoteScorerURL:     getEnv("REMOTE_SCORER_URL", ""),
		RemoteScorerAPIKey:  getEnv("REMOTE_SCORER_API_KEY", ""),
		RemoteScorerTimeout: getEnvAsDuration("REMOTE_SCORER_TIMEOUT", 3*time.Second),

		ModelArtifactURI: getEnv("MODEL_ARTIFACT_URI", ""),

		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", ""),

		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisTLS:       getEnvAsBool("REDIS_TLS", false),
		PatientLockTTL: getEnvAsDuration("PATIENT_LOCK_TTL", 30*time.Second),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		OutcomeQueueURL: getEnv("OUTCOME_QUEUE_URL", ""),
		SweepInterval:   getEnvAsDuration("EXPIRY_SWEEP_INTERVAL", time.Hour),

		AlertEmail:        getEnv("ALERT_EMAIL", ""),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Nudge Engine"),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),

		PublicRateLimit: getEnvAsFloat("PUBLIC_RATE_LIMIT", 0),
		PublicRateBurst: getEnvAsInt("PUBLIC_RATE_BURST", 20),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable, dropping
// empty entries.
func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	return values
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
