package main

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

const (
	statsEventName   = "statistics.request.completed"
	statsEventDomain = "stats"

	attrHTTPStatusCode = "http.status_code"
	attrTotalMillis    = "stats.request.total_ms"
	attrAuthMillis     = "stats.request.auth_ms"
	attrFlowMillis     = "stats.request.flow_ms"
	attrEncodeMillis   = "stats.request.encode_ms"
	attrActiveCount    = "stats.request.active_count"
	attrCompletedCount = "stats.request.completed_count"
	attrErrorStage     = "stats.request.error_stage"
)

type logRecord struct {
	EventName      string         `json:"event.name"`
	EventDomain    string         `json:"event.domain"`
	SeverityText   string         `json:"severity_text"`
	SeverityNumber int            `json:"severity_number"`
	Attributes     map[string]any `json:"attributes"`
}

type collector struct {
	eventName   string
	eventDomain string

	count          int
	severityCounts map[string]int
	statusCounts   map[int]int
	durations      map[string]*numericStats
	active         *numericStats
	completed      *numericStats
	errorStages    map[string]int
	errorEvents    int
	warnEvents     int
	skipped        int
}

type numericStats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

type numericSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

type summaryOutput struct {
	EventName      string                    `json:"event_name"`
	EventDomain    string                    `json:"event_domain"`
	TotalEvents    int                       `json:"total_events"`
	SeverityCounts map[string]int            `json:"severity_counts"`
	StatusCounts   map[string]int            `json:"status_counts"`
	DurationMs     map[string]numericSummary `json:"duration_ms"`
	ActiveCount    numericSummary            `json:"active_count"`
	CompletedCount numericSummary            `json:"completed_count"`
	ErrorStages    map[string]int            `json:"error_stages,omitempty"`
	ErrorEvents    int                       `json:"error_events"`
	WarnEvents     int                       `json:"warn_events"`
	SkippedLines   int                       `json:"skipped_lines"`
}

func newCollector(eventName, eventDomain string) *collector {
	return &collector{
		eventName:      eventName,
		eventDomain:    eventDomain,
		severityCounts: make(map[string]int),
		statusCounts:   make(map[int]int),
		durations:      make(map[string]*numericStats),
		errorStages:    make(map[string]int),
	}
}

// ingest parses one log line. Container log prefixes up to the first
// pipe are stripped so compose output can be piped in directly.
func (c *collector) ingest(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if pipe := strings.Index(trimmed, "|"); pipe >= 0 {
		trimmed = strings.TrimSpace(trimmed[pipe+1:])
	}

	rec, err := decodeRecord(trimmed)
	if err != nil {
		c.skipped++
		return
	}
	if rec.EventName != c.eventName {
		return
	}
	if c.eventDomain != "" && rec.EventDomain != c.eventDomain {
		return
	}

	c.addRecord(rec)
}

func decodeRecord(raw string) (logRecord, error) {
	var rec logRecord
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return logRecord{}, err
	}
	return rec, nil
}

func (c *collector) addRecord(rec logRecord) {
	c.count++

	severity := strings.ToUpper(strings.TrimSpace(rec.SeverityText))
	if severity == "" {
		severity = "UNSPECIFIED"
	}
	c.severityCounts[severity]++
	switch severity {
	case "ERROR":
		c.errorEvents++
	case "WARN", "WARNING":
		c.warnEvents++
	}

	if rec.Attributes == nil {
		return
	}

	if raw, exists := rec.Attributes[attrHTTPStatusCode]; exists {
		if status, ok := asInt(raw); ok {
			c.statusCounts[status]++
		}
	}
	for key, name := range map[string]string{
		attrTotalMillis:  "total",
		attrAuthMillis:   "auth",
		attrFlowMillis:   "flow",
		attrEncodeMillis: "encode",
	} {
		if raw, exists := rec.Attributes[key]; exists {
			if v, ok := asFloat(raw); ok {
				c.addDuration(name, v)
			}
		}
	}
	if raw, exists := rec.Attributes[attrActiveCount]; exists {
		if v, ok := asFloat(raw); ok {
			if c.active == nil {
				c.active = newNumericStats()
			}
			c.active.add(v)
		}
	}
	if raw, exists := rec.Attributes[attrCompletedCount]; exists {
		if v, ok := asFloat(raw); ok {
			if c.completed == nil {
				c.completed = newNumericStats()
			}
			c.completed.add(v)
		}
	}
	if raw, exists := rec.Attributes[attrErrorStage]; exists {
		if stage, ok := asString(raw); ok && stage != "" {
			c.errorStages[stage]++
		}
	}
}

func (c *collector) addDuration(key string, value float64) {
	stat, ok := c.durations[key]
	if !ok {
		stat = newNumericStats()
		c.durations[key] = stat
	}
	stat.add(value)
}

func newNumericStats() *numericStats {
	return &numericStats{Min: math.MaxFloat64}
}

func (n *numericStats) add(value float64) {
	n.Count++
	n.Sum += value
	if value < n.Min {
		n.Min = value
	}
	if value > n.Max {
		n.Max = value
	}
}

func (n *numericStats) summary() numericSummary {
	if n == nil || n.Count == 0 {
		return numericSummary{}
	}
	min := n.Min
	if min == math.MaxFloat64 {
		min = 0
	}
	return numericSummary{
		Count: n.Count,
		Min:   min,
		Max:   n.Max,
		Avg:   n.Sum / float64(n.Count),
	}
}

func (c *collector) summary() summaryOutput {
	durationMap := make(map[string]numericSummary, len(c.durations))
	for key, stat := range c.durations {
		durationMap[key] = stat.summary()
	}

	statusCounts := make(map[string]int, len(c.statusCounts))
	for status, count := range c.statusCounts {
		statusCounts[strconv.Itoa(status)] = count
	}

	var errorStages map[string]int
	if len(c.errorStages) > 0 {
		errorStages = c.errorStages
	}

	return summaryOutput{
		EventName:      c.eventName,
		EventDomain:    c.eventDomain,
		TotalEvents:    c.count,
		SeverityCounts: c.severityCounts,
		StatusCounts:   statusCounts,
		DurationMs:     durationMap,
		ActiveCount:    c.active.summary(),
		CompletedCount: c.completed.summary(),
		ErrorStages:    errorStages,
		ErrorEvents:    c.errorEvents,
		WarnEvents:     c.warnEvents,
		SkippedLines:   c.skipped,
	}
}

func (s summaryOutput) ShortString() string {
	totalSummary := s.DurationMs["total"]
	return strings.TrimSpace(strings.Join([]string{
		"event=" + s.EventName,
		"domain=" + s.EventDomain,
		"total=" + strconv.Itoa(s.TotalEvents),
		"info=" + strconv.Itoa(s.SeverityCounts["INFO"]),
		"warn=" + strconv.Itoa(s.WarnEvents),
		"error=" + strconv.Itoa(s.ErrorEvents),
		"avg_total_ms=" + formatFloat(totalSummary.Avg),
		"max_total_ms=" + formatFloat(totalSummary.Max),
	}, " "))
}

func formatFloat(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}
