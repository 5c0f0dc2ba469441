package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	statsSpanName    = "api.statistics.request"
	statsEventName   = "statistics.request.completed"
	statsEventDomain = "stats"
	statsRoute       = "/api/statistics"
)

type statsRequestMetrics struct {
	logger *log.Logger
	span   trace.Span
	start  time.Time

	authDuration   time.Duration
	flowDuration   time.Duration
	encodeDuration time.Duration
	activeCount    int
	completedCount int
	counted        bool
	errorStage     string
}

func newStatsRequestMetrics(ctx context.Context, logger *log.Logger) (*statsRequestMetrics, context.Context) {
	m := &statsRequestMetrics{
		logger: logger,
		start:  time.Now(),
	}
	spanCtx, span := otel.Tracer("stats-service/api").Start(ctx, statsSpanName)
	m.span = span
	return m, spanCtx
}

func (m *statsRequestMetrics) ObserveAuth(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.authDuration = duration
}

func (m *statsRequestMetrics) ObserveFlow(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.flowDuration = duration
}

func (m *statsRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *statsRequestMetrics) SetCounts(active, completed int) {
	if active < 0 {
		active = 0
	}
	if completed < 0 {
		completed = 0
	}
	m.activeCount = active
	m.completedCount = completed
	m.counted = true
}

func (m *statsRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *statsRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}

	severityText, severityNumber := severityForStatus(status, err)

	attrs := []attribute.KeyValue{
		attribute.String("http.route", statsRoute),
		attribute.Int("http.status_code", status),
		attribute.Float64("stats.request.total_ms", durationToMillis(time.Since(m.start))),
	}
	if m.authDuration > 0 {
		attrs = append(attrs, attribute.Float64("stats.request.auth_ms", durationToMillis(m.authDuration)))
	}
	if m.flowDuration > 0 {
		attrs = append(attrs, attribute.Float64("stats.request.flow_ms", durationToMillis(m.flowDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("stats.request.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.counted {
		attrs = append(attrs,
			attribute.Int("stats.request.active_count", m.activeCount),
			attribute.Int("stats.request.completed_count", m.completedCount),
		)
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("stats.request.error_stage", m.errorStage))
	}

	eventAttrs := make([]attribute.KeyValue, 0, len(attrs)+5)
	eventAttrs = append(eventAttrs,
		attribute.String("event.name", statsEventName),
		attribute.String("event.domain", statsEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	)
	eventAttrs = append(eventAttrs, attrs...)
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	m.span.SetAttributes(attrs...)
	m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
	if err != nil || status >= http.StatusInternalServerError {
		desc := m.errorStage
		if err != nil {
			desc = err.Error()
		}
		if desc == "" {
			desc = http.StatusText(status)
		}
		m.span.SetStatus(codes.Error, desc)
	} else {
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger == nil {
		return
	}

	fields := log.Fields{
		"event.name":      statsEventName,
		"event.domain":    statsEventDomain,
		"attributes":      attributesAsMap(attrs),
		"severity_text":   severityText,
		"severity_number": severityNumber,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	if sc := m.span.SpanContext(); sc.IsValid() {
		fields["trace_id"] = sc.TraceID().String()
		fields["span_id"] = sc.SpanID().String()
	}
	m.logger.WithFields(fields).Log(levelForSeverity(severityText), "observability.event")
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case err != nil || status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	default:
		return "INFO", 9
	}
}

func levelForSeverity(text string) log.Level {
	switch text {
	case "ERROR":
		return log.ErrorLevel
	case "WARN":
		return log.WarnLevel
	default:
		return log.InfoLevel
	}
}

func attributesAsMap(attrs []attribute.KeyValue) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		out[string(kv.Key)] = kv.Value.AsInterface()
	}
	return out
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
