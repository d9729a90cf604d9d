package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        int
	LogLevel    string
	APIToken    string
	NatsURL     string
	NatsToken   string
	DatabaseURL string

	FetchMode    string
	FetchTimeout time.Duration
	BrowserURL   string

	VocabularyPath string

	RoleField       string
	UserMarker      string
	AssistantMarker string

	UnclassifiedParagraphs string

	BatchConcurrency int
}

func Load() Config {
	return Config{
		Port:        envInt("RESONANCE_PORT", 8760),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIToken:    envStr("RESONANCE_API_TOKEN", ""),
		NatsURL:     envStr("NATS_URL", ""),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),

		FetchMode:    envStr("RESONANCE_FETCH_MODE", "http"),
		FetchTimeout: envDuration("RESONANCE_FETCH_TIMEOUT", 30*time.Second),
		BrowserURL:   envStr("RESONANCE_BROWSER_URL", ""),

		VocabularyPath: envStr("RESONANCE_VOCABULARY_PATH", ""),

		RoleField:       envStr("RESONANCE_ROLE_FIELD", "_2210"),
		UserMarker:      envStr("RESONANCE_USER_MARKER", "18"),
		AssistantMarker: envStr("RESONANCE_ASSISTANT_MARKER", "2280"),

		UnclassifiedParagraphs: envStr("RESONANCE_UNCLASSIFIED_PARAGRAPHS", "drop"),

		BatchConcurrency: envInt("RESONANCE_BATCH_CONCURRENCY", 4),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
