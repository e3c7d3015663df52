package trading

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polytrade/internal/domain"
)

const sideEffectTimeout = 5 * time.Second

// publish sends an event envelope on the bus and appends it to the
// channel's stream for replay. Failures are logged only.
func (s *Service) publish(ctx context.Context, channel, eventType string, data any) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(domain.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "trading: marshal event failed",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.bus.Publish(ctx, channel, payload); err != nil {
		s.logger.WarnContext(ctx, "trading: publish event failed",
			slog.String("channel", channel),
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, channel, payload); err != nil {
		s.logger.DebugContext(ctx, "trading: stream append failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "trading: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, event, title, message); err != nil {
		s.logger.WarnContext(ctx, "trading: notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
