package logger

import (
	"time"

	"github.com/rs/zerolog"
)

// LogRequest logs the outcome of an HTTP call
func LogRequest(log Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration_ms": duration.Milliseconds(),
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		log.DebugWithFields("HTTP request completed", fields)
	case statusCode >= 400 && statusCode < 500:
		log.WarnWithFields("HTTP request client error", fields)
	case statusCode >= 500:
		log.ErrorWithFields("HTTP request server error", fields)
	}
}

// LogRateLimit logs rate limiting events
func LogRateLimit(log Logger, url string, backoff time.Duration) {
	log.WithFields(map[string]interface{}{
		"url":     url,
		"backoff": backoff,
		"action":  "rate_limited",
	}).Warn("Rate limit reached, backing off")
}

// LogArchived logs a record handed to the output writer
func LogArchived(log Logger, operation, id string) {
	log.WithFields(map[string]interface{}{
		"operation": operation,
		"id":        id,
	}).Debug("archived")
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
