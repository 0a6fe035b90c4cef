// Package hooks provides the slog-backed logger, the step logging hook and an
// in-memory metrics collector used by the editing service.
package hooks

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Skryldev/media-editor/core"
	apperrors "github.com/Skryldev/media-editor/errors"
)

// ── Structured logger adapter ─────────────────────────────────────────────────

// SlogLogger wraps slog.Logger to satisfy core.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// NewSlogLogger creates a logger backed by slog.  A nil logger uses
// slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{log: l}
}

// With returns a logger that adds fields to every record.
func (s *SlogLogger) With(fields ...interface{}) *SlogLogger {
	return &SlogLogger{log: s.log.With(fields...)}
}

func (s *SlogLogger) Debug(msg string, fields ...interface{}) { s.log.Debug(msg, fields...) }
func (s *SlogLogger) Info(msg string, fields ...interface{})  { s.log.Info(msg, fields...) }
func (s *SlogLogger) Warn(msg string, fields ...interface{})  { s.log.Warn(msg, fields...) }
func (s *SlogLogger) Error(msg string, fields ...interface{}) { s.log.Error(msg, fields...) }

// ── Logging hook ──────────────────────────────────────────────────────────────

// LoggingHook logs every raster step at debug level and failures at error
// level.
type LoggingHook struct {
	logger core.Logger
}

// NewLoggingHook creates a LoggingHook.
func NewLoggingHook(l core.Logger) *LoggingHook { return &LoggingHook{logger: l} }

func (h *LoggingHook) BeforeStep(_ context.Context, stepName string, img *core.ImageData) {
	w, ht := dims(img)
	h.logger.Debug("pipeline.step.start",
		"step", stepName,
		"width", w,
		"height", ht,
	)
}

func (h *LoggingHook) AfterStep(_ context.Context, stepName string, img *core.ImageData, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("pipeline.step.error",
			"step", stepName,
			"duration_ms", d.Milliseconds(),
			"category", string(apperrors.CategoryOf(err)),
			"error", err.Error(),
		)
		return
	}
	w, ht := dims(img)
	fields := []interface{}{
		"step", stepName,
		"duration_ms", d.Milliseconds(),
		"width", w,
		"height", ht,
	}
	if img != nil && img.Format != "" {
		fields = append(fields, "format", string(img.Format))
	}
	h.logger.Debug("pipeline.step.done", fields...)
}

func dims(img *core.ImageData) (int, int) {
	if img == nil || img.Image == nil {
		return 0, 0
	}
	b := img.Image.Bounds()
	return b.Dx(), b.Dy()
}

// ── In-memory metrics collector ───────────────────────────────────────────────

// InMemoryMetrics accumulates timings per operation or step name and error
// counts per category.  Safe for concurrent use.
type InMemoryMetrics struct {
	mu sync.RWMutex

	durationsMs map[string]int64 // cumulative ms per name
	calls       map[string]int64
	errors      map[string]int64            // per name
	categories  map[apperrors.Category]int64 // per failure kind

	totalThroughputB int64
}

// NewInMemoryMetrics creates an empty metrics store.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		durationsMs: make(map[string]int64),
		calls:       make(map[string]int64),
		errors:      make(map[string]int64),
		categories:  make(map[apperrors.Category]int64),
	}
}

func (m *InMemoryMetrics) RecordProcessingTime(name string, d interface{ Seconds() float64 }) {
	ms := int64(d.Seconds() * 1000)
	m.mu.Lock()
	m.durationsMs[name] += ms
	m.calls[name]++
	m.mu.Unlock()
}

func (m *InMemoryMetrics) RecordThroughput(bytes int64) {
	atomic.AddInt64(&m.totalThroughputB, bytes)
}

func (m *InMemoryMetrics) RecordError(name string, category string) {
	m.mu.Lock()
	m.errors[name]++
	m.categories[apperrors.Category(category)]++
	m.mu.Unlock()
}

// Snapshot returns a copy of current metrics.
func (m *InMemoryMetrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := MetricsSnapshot{
		DurationsMs:      copyCounts(m.durationsMs),
		Calls:            copyCounts(m.calls),
		Errors:           copyCounts(m.errors),
		ErrorsByCategory: make(map[apperrors.Category]int64, len(m.categories)),
		TotalThroughputB: atomic.LoadInt64(&m.totalThroughputB),
	}
	for k, v := range m.categories {
		snap.ErrorsByCategory[k] = v
	}
	return snap
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// MetricsSnapshot is an immutable point-in-time copy of metrics.
type MetricsSnapshot struct {
	DurationsMs      map[string]int64
	Calls            map[string]int64
	Errors           map[string]int64
	ErrorsByCategory map[apperrors.Category]int64
	TotalThroughputB int64
}

// ── Metrics hook ──────────────────────────────────────────────────────────────

// MetricsHook feeds raster step timings into a MetricsCollector.  Step names
// are prefixed with "step." so they do not mix with operation names recorded
// by the processor.
type MetricsHook struct {
	collector core.MetricsCollector
}

// NewMetricsHook creates a MetricsHook.
func NewMetricsHook(c core.MetricsCollector) *MetricsHook { return &MetricsHook{collector: c} }

func (h *MetricsHook) BeforeStep(context.Context, string, *core.ImageData) {}

func (h *MetricsHook) AfterStep(_ context.Context, stepName string, _ *core.ImageData, d time.Duration, err error) {
	name := "step." + stepName
	h.collector.RecordProcessingTime(name, d)
	if err != nil {
		cat := apperrors.CategoryOf(err)
		if cat == "" {
			cat = apperrors.CategoryPipeline
		}
		h.collector.RecordError(name, string(cat))
	}
}
