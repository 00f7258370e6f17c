package database

import (
	"context"

	"github.com/jackc/pgx/v5/tracelog"

	"github.com/josephdodge8141/aspen-backend/logger"
)

// queryLogger adapts the structured logger to pgx's tracelog interface so
// slow or failing statements are reported in the service's log format.
type queryLogger struct {
	log *logger.Logger
}

func newQueryLogger(log *logger.Logger) *queryLogger {
	return &queryLogger{log: log.WithComponent("pgx")}
}

func (l *queryLogger) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	fields := make(map[string]interface{}, len(data))
	for k, v := range data {
		fields[k] = v
	}
	switch level {
	case tracelog.LogLevelTrace, tracelog.LogLevelDebug:
		l.log.Debug(msg, fields)
	case tracelog.LogLevelInfo:
		l.log.Info(msg, fields)
	case tracelog.LogLevelWarn:
		l.log.Warn(msg, fields)
	default:
		l.log.Error(msg, fields)
	}
}
