package scenarios

import (
	"bufio"
	"net/http"
	"strings"
	"testing"
	"time"

	"statstest/internal/assertx"
)

func TestStreamingLiveUpdates(t *testing.T) {
	userID, client := freshUserClient(t, "stream-user")
	rc := newRedisClient(t)
	t.Cleanup(func() {
		_ = rc.Close()
	})

	req, err := client.NewRequest(http.MethodGet, "/api/statistics/stream")
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := client.HTTP.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Skipf("stream unavailable: status %d", resp.StatusCode)
	}

	snapshots := make(chan string, 4)
	go func() {
		defer close(snapshots)
		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "data:") && strings.Contains(line, "activeCount") {
				snapshots <- strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
		}
	}()

	// connecting runs the first aggregation flow
	select {
	case first := <-snapshots:
		if !strings.Contains(first, "completedCount") {
			t.Fatalf("unexpected snapshot payload: %q", first)
		}
	case <-time.After(refreshSLA(t)):
		t.Fatal("no snapshot received after connect")
	}

	// a task-change notification triggers a fresh flow on the open stream
	publishTaskChange(t, rc, userID)

	select {
	case second, ok := <-snapshots:
		if !ok {
			t.Fatal("stream closed before the refreshed snapshot arrived")
		}
		if !strings.Contains(second, "completedCount") {
			t.Fatalf("unexpected snapshot payload: %q", second)
		}
	case <-time.After(refreshSLA(t)):
		t.Fatal("no refreshed snapshot after task change")
	}
}

func TestStreamRequiresToken(t *testing.T) {
	client := newStatsClient(t)

	req, err := http.NewRequest(http.MethodGet, client.BaseURL+"/api/statistics/stream", nil)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	resp, err := client.HTTP.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	assertx.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
