// Package logging is the internal logger the writer core uses for its own
// diagnostics. It is deliberately separate from whatever logging framework
// an adapter forwards into this library, so the writer never logs through
// the framework it serves and risks recursing back into itself.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level is the severity of a log line.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a level name case-insensitively, accepting "WARNING"
// as an alias for Warn.
func ParseLevel(level string) (Level, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return Debug, nil
	case "INFO":
		return Info, nil
	case "WARN", "WARNING":
		return Warn, nil
	case "ERROR":
		return Error, nil
	default:
		return Info, fmt.Errorf("unknown log level: %s", level)
	}
}

// Logger is a small leveled, field-tagged logger. The zero value is not
// usable; construct with New or NewWithConfig.
type Logger struct {
	level  Level
	logger *log.Logger
	fields map[string]interface{}
}

// Config configures a new Logger.
type Config struct {
	Level  Level
	Output io.Writer
}

// New returns a Logger at Info level writing to stdout.
func New() *Logger {
	return NewWithConfig(Config{Level: Info, Output: os.Stdout})
}

// NewWithConfig returns a Logger configured per cfg.
func NewWithConfig(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	return &Logger{
		level:  cfg.Level,
		logger: log.New(cfg.Output, "", 0),
		fields: make(map[string]interface{}),
	}
}

// WithField returns a derived Logger carrying one extra field, e.g.
// WithField("destination", "cloudwatch").
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(key, value)
}

// WithFields returns a derived Logger carrying key/value pairs given as a
// flat alternating list.
func (l *Logger) WithFields(keyVals ...interface{}) *Logger {
	derived := &Logger{
		level:  l.level,
		logger: l.logger,
		fields: make(map[string]interface{}, len(l.fields)+len(keyVals)/2),
	}
	for k, v := range l.fields {
		derived.fields[k] = v
	}
	for i := 0; i+1 < len(keyVals); i += 2 {
		derived.fields[fmt.Sprintf("%v", keyVals[i])] = keyVals[i+1]
	}
	return derived
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(Debug, msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(Info, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(Warn, msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(Error, msg, kv...) }

func (l *Logger) SetLevel(level Level) { l.level = level }
func (l *Logger) GetLevel() Level      { return l.level }

func (l *Logger) log(level Level, msg string, kv ...interface{}) {
	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02T15:04:05.000Z07:00")

	all := make(map[string]interface{}, len(l.fields)+len(kv)/2)
	for k, v := range l.fields {
		all[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		all[fmt.Sprintf("%v", kv[i])] = kv[i+1]
	}

	l.logger.Print(formatLine(timestamp, level, msg, all))
}

func formatLine(timestamp string, level Level, msg string, fields map[string]interface{}) string {
	parts := []string{fmt.Sprintf("[%s]", timestamp), fmt.Sprintf("[%s]", level), msg}

	if len(fields) > 0 {
		var fieldParts []string
		for key, value := range fields {
			fieldParts = append(fieldParts, fmt.Sprintf("%s=%v", key, formatValue(value)))
		}
		parts = append(parts, fmt.Sprintf("| %s", strings.Join(fieldParts, " ")))
	}

	return strings.Join(parts, " ")
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		if strings.Contains(v, " ") {
			return fmt.Sprintf("%q", v)
		}
		return v
	case error:
		return fmt.Sprintf("%q", v.Error())
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format("2006-01-02T15:04:05Z07:00")
	default:
		return fmt.Sprintf("%v", v)
	}
}
