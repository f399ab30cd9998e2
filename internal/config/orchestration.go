package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"
)

// OrchestrationConfig carries the per-deployment tunables of the task core:
// the review pass threshold, the dedup retention bounds and the timeouts on
// long-latency collaborators. None of these are hidden constants.
type OrchestrationConfig struct {
	ReviewPassThreshold float64
	DedupRetention      time.Duration
	DedupMaxEntries     int
	EvalTimeout         time.Duration
	RankTimeout         time.Duration
	ReminderIdle        time.Duration
	ReminderInterval    time.Duration
}

var (
	orchestrationConfig *OrchestrationConfig
	orchestrationOnce   sync.Once
)

func LoadOrchestrationConfig() *OrchestrationConfig {
	orchestrationOnce.Do(func() {
		orchestrationConfig = &OrchestrationConfig{
			ReviewPassThreshold: envFloat("REVIEW_PASS_THRESHOLD", 80),
			DedupRetention:      envDuration("DEDUP_RETENTION", 24*time.Hour),
			DedupMaxEntries:     envInt("DEDUP_MAX_ENTRIES", 10000),
			EvalTimeout:         envDuration("EVAL_TIMEOUT", 60*time.Second),
			RankTimeout:         envDuration("RANK_TIMEOUT", 60*time.Second),
			ReminderIdle:        envDuration("REMINDER_IDLE", 48*time.Hour),
			ReminderInterval:    envDuration("REMINDER_INTERVAL", time.Hour),
		}
	})
	return orchestrationConfig
}

func envFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %v", key, raw, def)
		return def
	}
	return v
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %v", key, raw, def)
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %v", key, raw, def)
		return def
	}
	return v
}
