package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levelRank = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch Level(s) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return Level(s)
	}
	return LevelInfo
}

// Logger writes structured JSON log lines with correlation ID support.
type Logger struct {
	mu      sync.Mutex
	output  io.Writer
	level   Level
	service string
}

// Option configures a Logger.
type Option func(*Logger)

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(l *Logger) {
		l.output = w
	}
}

// WithLevel sets the minimum level.
func WithLevel(level Level) Option {
	return func(l *Logger) {
		l.level = level
	}
}

// WithService sets the service name attached to every entry.
func WithService(service string) Option {
	return func(l *Logger) {
		l.service = service
	}
}

// New creates a Logger with the given options.
func New(opts ...Option) *Logger {
	logger := &Logger{
		output:  os.Stdout,
		level:   LevelInfo,
		service: "g2commons",
	}
	for _, opt := range opts {
		opt(logger)
	}
	return logger
}

// SetLevel changes the minimum level at runtime. Used by config hot reload.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := levelRank[level]; ok {
		l.level = level
	}
}

type entry struct {
	Timestamp     string                 `json:"timestamp"`
	Level         Level                  `json:"level"`
	Service       string                 `json:"service"`
	Message       string                 `json:"message"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Fields        map[string]interface{} `json:"fields,omitempty"`
}

func (l *Logger) write(level Level, message, correlationID string, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if levelRank[level] < levelRank[l.level] {
		return
	}

	e := entry{
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		Level:         level,
		Service:       l.service,
		Message:       message,
		CorrelationID: correlationID,
		Fields:        fields,
	}

	data, err := json.Marshal(e)
	if err != nil {
		log.Printf("failed to marshal log entry: %v", err)
		return
	}
	fmt.Fprintln(l.output, string(data))
}

// Debug logs at debug level. Fields are key, value pairs.
func (l *Logger) Debug(message string, fields ...interface{}) {
	l.write(LevelDebug, message, "", toFieldMap(fields))
}

// Info logs at info level. Fields are key, value pairs.
func (l *Logger) Info(message string, fields ...interface{}) {
	l.write(LevelInfo, message, "", toFieldMap(fields))
}

// Warn logs at warn level. Fields are key, value pairs.
func (l *Logger) Warn(message string, fields ...interface{}) {
	l.write(LevelWarn, message, "", toFieldMap(fields))
}

// Error logs at error level. Fields are key, value pairs.
func (l *Logger) Error(message string, fields ...interface{}) {
	l.write(LevelError, message, "", toFieldMap(fields))
}

// InfoCtx logs at info level with the correlation ID carried by ctx.
func (l *Logger) InfoCtx(ctx context.Context, message string, fields ...interface{}) {
	l.write(LevelInfo, message, CorrelationID(ctx), toFieldMap(fields))
}

// WarnCtx logs at warn level with the correlation ID carried by ctx.
func (l *Logger) WarnCtx(ctx context.Context, message string, fields ...interface{}) {
	l.write(LevelWarn, message, CorrelationID(ctx), toFieldMap(fields))
}

// ErrorCtx logs at error level with the correlation ID carried by ctx.
func (l *Logger) ErrorCtx(ctx context.Context, message string, fields ...interface{}) {
	l.write(LevelError, message, CorrelationID(ctx), toFieldMap(fields))
}

func toFieldMap(fields []interface{}) map[string]interface{} {
	if len(fields) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		m[key] = fields[i+1]
	}
	return m
}
