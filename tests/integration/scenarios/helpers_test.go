package scenarios

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	integration "statstest"
	"statstest/internal/httpclient"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

type statistics struct {
	ActiveCount    int `json:"activeCount"`
	CompletedCount int `json:"completedCount"`
}

type idleStatus struct {
	Idle     bool  `json:"idle"`
	InFlight int64 `json:"inFlight"`
}

func newStatsClient(t *testing.T) *httpclient.Client {
	base := os.Getenv("API_BASE")
	if base == "" {
		base = "http://localhost:8080"
	}
	health := os.Getenv("HEALTH_ENDPOINT")
	if health == "" {
		health = "/healthz"
	}
	if _, err := http.Get(base + health); err != nil {
		t.Skipf("skipping, API not reachable: %v", err)
	}
	bearer := os.Getenv("TEST_BEARER")
	if bearer == "" {
		tok, err := integration.TestToken("integration-user")
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		bearer = tok
	}
	return httpclient.New(base, bearer)
}

// freshUserClient scopes a client to a user id no other test has touched, so
// the task partition behind it is empty and counts are deterministic.
func freshUserClient(t *testing.T, prefix string) (string, *httpclient.Client) {
	userID := fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	bearer, err := integration.TestToken(userID)
	if err != nil {
		t.Fatalf("generate bearer: %v", err)
	}
	t.Setenv("TEST_BEARER", bearer)
	return userID, newStatsClient(t)
}

// pollStatistics polls /api/statistics until cond returns true or the SLA passes.
func pollStatistics(t *testing.T, client *httpclient.Client, desc string, cond func(statistics) bool) statistics {
	deadline := time.Now().Add(refreshSLA(t))
	backoff := 200 * time.Millisecond
	for {
		var stats statistics
		_, err := client.GetJSON("/api/statistics", &stats)
		if err == nil && cond(stats) {
			return stats
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s: %v", desc, err)
		}
		time.Sleep(backoff)
		if backoff < time.Second {
			backoff *= 2
		}
	}
}

type slaConfig struct {
	RefreshVisibilityMs int `yaml:"refresh_visibility_sla_ms"`
	IdleSettleMs        int `yaml:"idle_settle_sla_ms"`
}

func loadSLA() slaConfig {
	var cfg slaConfig
	data, err := os.ReadFile("../config.test.yaml")
	if err != nil {
		return cfg
	}
	_ = yaml.Unmarshal(data, &cfg)
	return cfg
}

func refreshSLA(t *testing.T) time.Duration {
	t.Helper()
	if cfg := loadSLA(); cfg.RefreshVisibilityMs > 0 {
		return time.Duration(cfg.RefreshVisibilityMs) * time.Millisecond
	}
	return 10 * time.Second
}

func idleSLA(t *testing.T) time.Duration {
	t.Helper()
	if cfg := loadSLA(); cfg.IdleSettleMs > 0 {
		return time.Duration(cfg.IdleSettleMs) * time.Millisecond
	}
	return 15 * time.Second
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	conn := os.Getenv("REDIS_CONNECTION_STRING")
	if conn == "" {
		t.Fatalf("REDIS_CONNECTION_STRING must be set for live update tests")
	}
	opts, err := redis.ParseURL(conn)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	return redis.NewClient(opts)
}

// publishTaskChange emits a task-change notification the way the read model
// updater does after applying an event.
func publishTaskChange(t *testing.T, rc *redis.Client, userID string) {
	t.Helper()
	channel := os.Getenv("UPDATES_CHANNEL")
	if channel == "" {
		channel = "read-model-updates"
	}
	now := time.Now()
	payload := fmt.Sprintf(
		`{"Id":"evt-%d","EntityId":"task-%d","EntityType":"task","Type":"task-completed","Time":%d,"UserId":"%s"}`,
		now.UnixNano(), now.UnixNano(), now.Unix(), userID,
	)
	if err := rc.Publish(context.Background(), channel, payload).Err(); err != nil {
		t.Fatalf("publish update: %v", err)
	}
}
