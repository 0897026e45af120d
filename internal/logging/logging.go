// Package logging builds the logrus loggers shared by the servers and CLI, and
// scrubs sensitive request fields before they are logged.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Log formats
const (
	FORMAT_JSON = "json"
	FORMAT_TEXT = "text"
)

// MAX_FIELD_LENGTH bounds string field values in sanitized logs.
const MAX_FIELD_LENGTH = 256

const redacted = "[REDACTED]"

// Field names whose values never reach the logs. VCF content is genomic data.
var sensitivePatterns = []string{
	"password", "token", "secret", "api_key", "apikey", "auth",
	"vcf", "content", "notes",
}

// New creates a logger writing to stderr. stdout is left free for the stdio
// MCP transport. An unknown level falls back to info.
func New(level, format string) *logrus.Logger {
	return NewWithOutput(os.Stderr, level, format)
}

// NewWithOutput creates a logger writing to out.
func NewWithOutput(out io.Writer, level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, FORMAT_TEXT) {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	return logger
}

// Discard returns a logger that drops everything. Used in tests and by the
// CLI when --quiet is set.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// Sanitize returns a copy of fields with sensitive values redacted and long
// strings truncated.
func Sanitize(fields map[string]interface{}) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for k, v := range fields {
		out[k] = sanitizeField(k, v)
	}
	return out
}

func sanitizeField(key string, value interface{}) interface{} {
	lowerKey := strings.ToLower(key)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerKey, pattern) {
			return redacted
		}
	}

	if str, ok := value.(string); ok && len(str) > MAX_FIELD_LENGTH {
		return str[:MAX_FIELD_LENGTH] + "... [TRUNCATED]"
	}
	return value
}
