// Package logging provides the structured logger used across the engine and CLI.
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ApplicationLogger defines the interface for structured application logging.
type ApplicationLogger interface {
	Debug(ctx context.Context, message string, fields Fields)
	Info(ctx context.Context, message string, fields Fields)
	Warn(ctx context.Context, message string, fields Fields)
	Error(ctx context.Context, message string, fields Fields)
	ErrorWithError(ctx context.Context, err error, message string, fields Fields)
	LogPerformance(ctx context.Context, operation string, duration time.Duration, fields Fields)
	WithComponent(component string) ApplicationLogger
}

// Fields represents structured logging fields.
type Fields map[string]interface{}

// Config represents logger configuration.
type Config struct {
	Level  string
	Format string // json, text
	Output string // stdout, stderr, buffer (for testing)
}

// DefaultConfig logs INFO and above as JSON to stderr, leaving stdout to reports.
func DefaultConfig() Config {
	return Config{Level: "INFO", Format: "json", Output: "stderr"}
}

// LogEntry represents the structure of log entries.
type LogEntry struct {
	Timestamp     string                 `json:"timestamp"`
	Level         string                 `json:"level"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id"`
	Component     string                 `json:"component"`
	Operation     string                 `json:"operation,omitempty"`
	Duration      string                 `json:"duration,omitempty"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type contextKey string

// CorrelationIDKey is the context key carrying the correlation ID of a run.
const CorrelationIDKey contextKey = "correlation_id"

var levelRank = map[string]int{ //nolint:gochecknoglobals // lookup table
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

type applicationLoggerImpl struct {
	config    Config
	component string
	buffer    *syncBuffer // For testing
	logger    *log.Logger
}

// NewApplicationLogger creates a new application logger.
func NewApplicationLogger(config Config) (ApplicationLogger, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	config.Level = strings.ToUpper(config.Level)

	logger := &applicationLoggerImpl{config: config}

	var out io.Writer
	switch config.Output {
	case "buffer":
		logger.buffer = &syncBuffer{}
		out = logger.buffer
	case "stdout":
		out = os.Stdout
	default:
		out = os.Stderr
	}
	logger.logger = log.New(out, "", 0)

	return logger, nil
}

func validateConfig(config Config) error {
	if _, ok := levelRank[strings.ToUpper(config.Level)]; !ok {
		return fmt.Errorf("invalid log level: %s", config.Level)
	}
	switch config.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Format)
	}
	switch config.Output {
	case "stdout", "stderr", "buffer":
	default:
		return fmt.Errorf("invalid log output: %s", config.Output)
	}
	return nil
}

func (l *applicationLoggerImpl) shouldLog(level string) bool {
	return levelRank[level] >= levelRank[l.config.Level]
}

// Debug logs debug messages.
func (l *applicationLoggerImpl) Debug(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("DEBUG") {
		l.logEntry(ctx, "DEBUG", message, "", fields)
	}
}

// Info logs info messages.
func (l *applicationLoggerImpl) Info(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("INFO") {
		l.logEntry(ctx, "INFO", message, "", fields)
	}
}

// Warn logs warning messages.
func (l *applicationLoggerImpl) Warn(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("WARN") {
		l.logEntry(ctx, "WARN", message, "", fields)
	}
}

// Error logs error messages.
func (l *applicationLoggerImpl) Error(ctx context.Context, message string, fields Fields) {
	if l.shouldLog("ERROR") {
		l.logEntry(ctx, "ERROR", message, "", fields)
	}
}

// ErrorWithError logs error messages with an error object.
func (l *applicationLoggerImpl) ErrorWithError(ctx context.Context, err error, message string, fields Fields) {
	if !l.shouldLog("ERROR") {
		return
	}
	errStr := ""
	if err != nil {
		errStr = err.Error()
	}
	l.logEntry(ctx, "ERROR", message, errStr, fields)
}

// LogPerformance logs the duration of an operation at DEBUG level.
func (l *applicationLoggerImpl) LogPerformance(
	ctx context.Context,
	operation string,
	duration time.Duration,
	fields Fields,
) {
	if !l.shouldLog("DEBUG") {
		return
	}
	merged := make(Fields, len(fields)+2)
	for k, v := range fields {
		merged[k] = v
	}
	merged["operation"] = operation
	merged["duration"] = duration.String()
	l.logEntry(ctx, "DEBUG", "Performance metrics for "+operation, "", merged)
}

// WithComponent creates a logger sharing the output and tagged with component.
func (l *applicationLoggerImpl) WithComponent(component string) ApplicationLogger {
	return &applicationLoggerImpl{
		config:    l.config,
		component: component,
		buffer:    l.buffer,
		logger:    l.logger,
	}
}

func (l *applicationLoggerImpl) logEntry(ctx context.Context, level, message, errorStr string, fields Fields) {
	component := l.component
	if component == "" {
		component = "default"
	}
	entry := &LogEntry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Level:         level,
		Message:       message,
		CorrelationID: getOrGenerateCorrelationID(ctx),
		Component:     component,
		Error:         errorStr,
	}
	if len(fields) > 0 {
		entry.Metadata = make(map[string]interface{}, len(fields))
	}
	for key, value := range fields {
		switch key {
		case "operation":
			if s, ok := value.(string); ok {
				entry.Operation = s
			}
		case "duration":
			if s, ok := value.(string); ok {
				entry.Duration = s
			}
		}
		entry.Metadata[key] = value
	}
	l.writeLogEntry(entry)
}

func (l *applicationLoggerImpl) writeLogEntry(entry *LogEntry) {
	if l.config.Format == "json" {
		data, err := json.Marshal(entry)
		if err != nil {
			l.logger.Printf("[%s] ERROR logging: could not encode entry: %v", entry.Timestamp, err)
			return
		}
		l.logger.Println(string(data))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s %s: %s", entry.Timestamp, entry.Level, entry.Component, entry.Message)
	if entry.Error != "" {
		fmt.Fprintf(&sb, " error=%q", entry.Error)
	}
	keys := make([]string, 0, len(entry.Metadata))
	for k := range entry.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, " %s=%v", k, entry.Metadata[k])
	}
	l.logger.Print(sb.String())
}

func getOrGenerateCorrelationID(ctx context.Context) string {
	if id := CorrelationIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}

// WithCorrelationID returns a context carrying id as its correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithNewCorrelationID returns a context carrying a fresh random correlation ID.
func WithNewCorrelationID(ctx context.Context) context.Context {
	return WithCorrelationID(ctx, uuid.New().String())
}

// CorrelationIDFromContext returns the correlation ID stored in ctx, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// BufferedOutput returns everything written by a logger created with Output "buffer".
func BufferedOutput(logger ApplicationLogger) string {
	if appLogger, ok := logger.(*applicationLoggerImpl); ok && appLogger.buffer != nil {
		return appLogger.buffer.String()
	}
	return ""
}

func getLoggerOutput(logger ApplicationLogger) string {
	lines := strings.Split(strings.TrimSpace(BufferedOutput(logger)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
