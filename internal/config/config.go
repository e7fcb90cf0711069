package config

import (
	"os"
	"strconv"
	"strings"
)

const DefaultMaxFileBytes = 10 << 20

type Config struct {
	APIAddr               string
	ServiceURL            string
	ServiceTimeoutSecs    int
	FakeService           bool
	PostgresURL           string
	TemporalEnabled       bool
	TemporalAddress       string
	TemporalTaskQueue     string
	DataInRoot            string
	MaxFileBytes          int64
	DefaultModel          string
	ModelsFile            string
	AuthSecret            string
	CachePath             string
	Dev                   bool
	ProgressPollMillis    int
	SubmissionTimeoutSecs int
}

func Load() Config {
	return Config{
		APIAddr:               getenv("BRIEFBOARD_API_ADDR", ":8080"),
		ServiceURL:            strings.TrimRight(getenv("BRIEFBOARD_SERVICE_URL", "http://localhost:8000"), "/"),
		ServiceTimeoutSecs:    getenvInt("BRIEFBOARD_SERVICE_TIMEOUT_SECONDS", 120),
		FakeService:           getenvBool("BRIEFBOARD_FAKE_SERVICE", false),
		PostgresURL:           getenv("BRIEFBOARD_POSTGRES_URL", ""),
		TemporalEnabled:       getenvBool("BRIEFBOARD_TEMPORAL_ENABLED", false),
		TemporalAddress:       getenv("BRIEFBOARD_TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue:     getenv("BRIEFBOARD_TEMPORAL_TASK_QUEUE", "briefboard"),
		DataInRoot:            getenv("BRIEFBOARD_DATA_IN", "./data/in"),
		MaxFileBytes:          int64(getenvInt("BRIEFBOARD_MAX_FILE_BYTES", DefaultMaxFileBytes)),
		DefaultModel:          getenv("BRIEFBOARD_DEFAULT_MODEL", "Mistral small"),
		ModelsFile:            getenv("BRIEFBOARD_MODELS_FILE", ""),
		AuthSecret:            getenv("BRIEFBOARD_AUTH_SECRET", ""),
		CachePath:             getenv("BRIEFBOARD_CACHE_PATH", "briefboard.db"),
		Dev:                   getenvBool("BRIEFBOARD_DEV", false),
		ProgressPollMillis:    getenvInt("BRIEFBOARD_PROGRESS_POLL_MILLIS", 1500),
		SubmissionTimeoutSecs: getenvInt("BRIEFBOARD_SUBMISSION_TIMEOUT_SECONDS", 1800),
	}
}

func getenv(k, fallback string) string {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	return v
}

func getenvInt(k string, fallback int) int {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(k string, fallback bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
