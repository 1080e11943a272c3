// Package logging provides config-driven categorized logging for intentgate.
// Every category is a named child of one zap logger, so output stays a single
// structured stream that can be filtered on the "category" field.
// Categories can be switched off individually; debug output is only emitted
// when debug_mode is set.
package logging

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot      Category = "boot"      // Boot/initialization
	CategoryAPI       Category = "api"       // HTTP transport
	CategoryResolver  Category = "resolver"  // Turn pipeline
	CategorySession   Category = "session"   // Session store, sweeper, clarifications
	CategoryRegistry  Category = "registry"  // Whitelist loading and refresh
	CategoryValidator Category = "validator" // Zero-trust validation and fuzzy correction

	// Perception categories
	CategoryFastMatch  Category = "fastmatch"  // Tier-1 pattern rules
	CategoryStructured Category = "structured" // Tier-2 keyword parser
	CategoryGenerative Category = "generative" // Tier-3 model calls
	CategoryLLM        Category = "llm"        // Model client transport

	CategoryTelemetry   Category = "telemetry"   // Diagnostic events
	CategoryUsage       Category = "usage"       // Resolution counters
	CategoryPerformance Category = "performance" // Slow operations
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	Level      string
	Format     string // json, console
	DebugMode  bool
	Categories map[string]bool
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	base      = zap.NewNop()
	opts      Options
	optsMu    sync.RWMutex
)

// Initialize builds the process logger from options. Call once at startup.
func Initialize(o Options) (*zap.Logger, error) {
	var zc zap.Config
	if o.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(levelName(o))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	Use(l, o)

	boot := Get(CategoryBoot)
	boot.Info("logging initialized (level=%s, format=%s, debug=%v)", lvl, zc.Encoding, o.DebugMode)
	if len(o.Categories) > 0 {
		enabled := 0
		for cat, on := range o.Categories {
			if on {
				enabled++
			}
			boot.Debug("category '%s': %v", cat, on)
		}
		boot.Info("enabled categories: %d/%d", enabled, len(o.Categories))
	}
	return l, nil
}

// Use installs an existing zap logger. Tests pass a zaptest/observer core.
func Use(l *zap.Logger, o Options) {
	if l == nil {
		l = zap.NewNop()
	}
	optsMu.Lock()
	base = l
	opts = o
	optsMu.Unlock()

	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
}

// Base returns the installed zap logger.
func Base() *zap.Logger {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return base
}

func levelName(o Options) string {
	if o.DebugMode {
		return "debug"
	}
	switch o.Level {
	case "":
		return "info"
	case "warning":
		return "warn"
	}
	return o.Level
}

// IsDebugMode returns whether debug logging is enabled
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	l := &Logger{
		category: category,
		sugar:    Base().With(zap.String("category", string(category))).Sugar(),
	}
	loggers[category] = l
	return l
}

// Zap returns the structured logger behind this category.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if !IsDebugMode() {
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// Sync flushes buffered output.
func Sync() {
	_ = Base().Sync()
}

// =============================================================================
// REQUEST ID TRACING
// =============================================================================

// RequestLogger provides turn-scoped logging with a correlation ID
type RequestLogger struct {
	sugar *zap.SugaredLogger
}

// WithRequestID creates a request-scoped logger. The session and turn IDs of
// a resolution are attached this way.
func WithRequestID(category Category, requestID string) *RequestLogger {
	return &RequestLogger{sugar: Get(category).sugar.With("req", requestID)}
}

// WithField adds a field to the request logger
func (r *RequestLogger) WithField(key string, value interface{}) *RequestLogger {
	return &RequestLogger{sugar: r.sugar.With(key, value)}
}

func (r *RequestLogger) Debug(format string, args ...interface{}) {
	if !IsDebugMode() {
		return
	}
	r.sugar.Debugf(format, args...)
}

func (r *RequestLogger) Info(format string, args ...interface{}) {
	r.sugar.Infof(format, args...)
}

func (r *RequestLogger) Warn(format string, args ...interface{}) {
	r.sugar.Warnf(format, args...)
}

func (r *RequestLogger) Error(format string, args ...interface{}) {
	r.sugar.Errorf(format, args...)
}

// =============================================================================
// TIMING HELPERS
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(CategoryPerformance).Warn("%s/%s took %v (threshold: %v)", t.category, t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
