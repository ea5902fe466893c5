package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitegen-portal/internal/progress"
)

// LogSink emits one structured log line per status transition.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("client_id", evt.ClientID),
			zap.String("event", evt.Name),
			zap.String("status", string(evt.Record.Status)),
			zap.Int("progress", evt.Record.Progress),
			zap.String("current_step", string(evt.Record.CurrentStep)),
			zap.Time("ts", evt.TS),
		}
		if evt.Record.Error != "" {
			fields = append(fields, zap.String("error", evt.Record.Error))
		}
		if evt.Record.PreviewURL != "" {
			fields = append(fields, zap.String("preview_url", evt.Record.PreviewURL))
		}
		s.logger.Info("generation status", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
