package retry

import "github.com/normanking/sage/internal/logging"

// LogSink emits failed-attempt events through the structured logger.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a sink writing to the given logger.
func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Nop()
	}
	return &LogSink{logger: logger}
}

// AttemptFailed logs one structured event per failed attempt.
func (s *LogSink) AttemptFailed(ev Event) {
	s.logger.Warn("operation attempt failed",
		"operation", ev.Operation,
		"attempt", ev.Attempt,
		"error", ev.Err,
	)
}
