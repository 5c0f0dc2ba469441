package main

import "testing"

func TestCollectorAggregatesStatisticsEvents(t *testing.T) {
	collector := newCollector(statsEventName, statsEventDomain)

	lines := []string{
		`{"event.name":"statistics.request.completed","event.domain":"stats","severity_text":"INFO","severity_number":9,"attributes":{"http.status_code":200,"stats.request.total_ms":22.5,"stats.request.auth_ms":1.5,"stats.request.flow_ms":18.0,"stats.request.encode_ms":0.4,"stats.request.active_count":2,"stats.request.completed_count":1}}`,
		`stats-service | {"event.name":"statistics.request.completed","event.domain":"stats","severity_text":"INFO","severity_number":9,"attributes":{"http.status_code":200,"stats.request.total_ms":17.1,"stats.request.active_count":0,"stats.request.completed_count":0}}`,
		`not a json line`,
		`{"event.name":"statistics.request.completed","event.domain":"stats","severity_text":"ERROR","severity_number":17,"attributes":{"http.status_code":500,"stats.request.total_ms":31.0,"stats.request.error_stage":"aggregate"}}`,
		`{"event.name":"some.other.event","event.domain":"stats","severity_text":"INFO","severity_number":9,"attributes":{}}`,
	}

	for _, line := range lines {
		collector.ingest(line)
	}

	summary := collector.summary()

	if summary.TotalEvents != 3 {
		t.Fatalf("expected 3 events, got %d", summary.TotalEvents)
	}
	if summary.SeverityCounts["INFO"] != 2 {
		t.Fatalf("expected 2 info events, got %d", summary.SeverityCounts["INFO"])
	}
	if summary.ErrorEvents != 1 {
		t.Fatalf("expected 1 error event, got %d", summary.ErrorEvents)
	}
	if summary.StatusCounts["200"] != 2 || summary.StatusCounts["500"] != 1 {
		t.Fatalf("unexpected status counts: %#v", summary.StatusCounts)
	}

	totalStats, ok := summary.DurationMs["total"]
	if !ok || totalStats.Count != 3 {
		t.Fatalf("expected total duration stats for 3 events, got %#v", totalStats)
	}
	if totalStats.Min != 17.1 || totalStats.Max != 31.0 {
		t.Fatalf("unexpected duration bounds: %#v", totalStats)
	}
	flowStats := summary.DurationMs["flow"]
	if flowStats.Count != 1 {
		t.Fatalf("expected 1 flow duration sample, got %#v", flowStats)
	}

	if summary.ActiveCount.Count != 2 || summary.ActiveCount.Max != 2 {
		t.Fatalf("unexpected active count stats: %#v", summary.ActiveCount)
	}
	if summary.CompletedCount.Count != 2 || summary.CompletedCount.Max != 1 {
		t.Fatalf("unexpected completed count stats: %#v", summary.CompletedCount)
	}
	if summary.ErrorStages["aggregate"] != 1 {
		t.Fatalf("expected aggregate error stage, got %#v", summary.ErrorStages)
	}
	if summary.SkippedLines != 1 {
		t.Fatalf("expected 1 skipped line, got %d", summary.SkippedLines)
	}

	if summary.ShortString() == "" {
		t.Fatal("expected short summary to be non-empty")
	}
}

func TestCollectorIgnoresOtherDomains(t *testing.T) {
	collector := newCollector(statsEventName, statsEventDomain)
	collector.ingest(`{"event.name":"statistics.request.completed","event.domain":"other","severity_text":"INFO","severity_number":9,"attributes":{"http.status_code":200}}`)

	if got := collector.summary().TotalEvents; got != 0 {
		t.Fatalf("expected domain mismatch to be skipped, got %d events", got)
	}
}
