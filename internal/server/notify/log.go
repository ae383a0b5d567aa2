package notify

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
)

// LogSink writes events to the log. It stands in when no broker is configured.
type LogSink struct {
	logger logging.Logger
}

func NewLogSink(logger logging.Logger) *LogSink {
	return &LogSink{logger: logger.With("sink", "log")}
}

func (s *LogSink) Send(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.logger.Info(ctx, "notification", "routing_key", ev.RoutingKey(), "payload", string(body))
	return nil
}
