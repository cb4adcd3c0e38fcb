package observability

import (
	"context"

	"go.uber.org/zap"
)

// EventLog records user-facing notifications as structured log events.
type EventLog struct {
	ctx context.Context
}

// NewEventLog creates an event log bound to ctx for its correlation fields.
func NewEventLog(ctx context.Context) *EventLog {
	return &EventLog{ctx: ctx}
}

// Publish logs an event at a level derived from its severity
// ("error", "warning", anything else is info).
func (e *EventLog) Publish(severity, message string) {
	logger := FromContext(e.ctx)
	fields := []zap.Field{zap.String("severity", severity)}

	switch severity {
	case "error":
		logger.Error(message, fields...)
	case "warning":
		logger.Warn(message, fields...)
	default:
		logger.Info(message, fields...)
	}
}
