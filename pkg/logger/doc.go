// Package logger provides the structured logging interface used across garc.
//
// It wraps zerolog. Standard output carries the archived records, so log lines go
// either to a file (JSON, one event per line) or to stderr through a console writer.
//
//	logger.Initialize(&cfg.Logging)
//	logger.GetLogger().WithField("query", q).Info("collection started")
//
// Values of credential fields (password, _token, cookie, ...) are replaced with
// "[redacted]" before they are written.
//
//	log := logger.GetLogger().WithField("component", "transport")
//	log.InfoWithFields("getting", map[string]interface{}{"url": u})
package logger
