package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type logLevel int

const (
	levelDebug logLevel = iota
	levelInfo
	levelWarn
	levelError
)

func parseLogLevel(s string) logLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return levelDebug
	case "WARN", "WARNING":
		return levelWarn
	case "ERROR":
		return levelError
	default:
		return levelInfo
	}
}

// StructuredLogger is the built-in Logger implementation. It writes one
// entry per line, JSON for log aggregation or key=value text for local
// development, and is safe for concurrent use.
type StructuredLogger struct {
	level     logLevel
	format    string
	component string
	output    io.Writer
	mu        sync.Mutex
}

// NewStructuredLogger creates a logger for the given component using the
// supplied logging configuration. Output defaults to stdout.
func NewStructuredLogger(cfg LoggingConfig, component string) *StructuredLogger {
	format := cfg.Format
	if format == "" {
		format = "json"
	}
	return &StructuredLogger{
		level:     parseLogLevel(cfg.Level),
		format:    format,
		component: component,
		output:    os.Stdout,
	}
}

// SetOutput redirects log output, mainly for tests.
func (l *StructuredLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.output = w
	l.mu.Unlock()
}

func (l *StructuredLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(levelDebug, "DEBUG", msg, fields)
}

func (l *StructuredLogger) Info(msg string, fields map[string]interface{}) {
	l.log(levelInfo, "INFO", msg, fields)
}

func (l *StructuredLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(levelWarn, "WARN", msg, fields)
}

func (l *StructuredLogger) Error(msg string, fields map[string]interface{}) {
	l.log(levelError, "ERROR", msg, fields)
}

func (l *StructuredLogger) log(level logLevel, label, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.format == "json" {
		entry := make(map[string]interface{}, len(fields)+4)
		for k, v := range fields {
			entry[k] = v
		}
		entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
		entry["level"] = label
		entry["message"] = msg
		if l.component != "" {
			entry["component"] = l.component
		}
		data, err := json.Marshal(entry)
		if err != nil {
			// Fields that cannot marshal still must not lose the message.
			fmt.Fprintf(l.output, `{"level":%q,"message":%q,"marshal_error":%q}`+"\n", label, msg, err.Error())
			return
		}
		fmt.Fprintln(l.output, string(data))
		return
	}

	var sb strings.Builder
	sb.WriteString(time.Now().Format("2006-01-02T15:04:05.000"))
	sb.WriteString(" ")
	sb.WriteString(label)
	if l.component != "" {
		sb.WriteString(" [" + l.component + "]")
	}
	sb.WriteString(" " + msg)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf(" %s=%v", k, fields[k]))
	}
	fmt.Fprintln(l.output, sb.String())
}
