package notify

import (
	"context"

	"github.com/rs/zerolog"

	"nutrifit-payments/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*Noop)(nil)

// Noop logs instead of sending. Used when no mailer is configured, so dev
// setups still show what would have gone out.
type Noop struct {
	log *zerolog.Logger
}

func NewNoop(logger *zerolog.Logger) *Noop {
	l := logger.With().Str("component", "NoopNotifier").Logger()
	return &Noop{log: &l}
}

func (n *Noop) Send(_ context.Context, msg adapter.Notification) error {
	n.log.Info().Str("type", string(msg.Type)).Str("to", msg.To).
		Str("plan", msg.Data.PlanName).Msg("notification suppressed (no mailer configured)")
	return nil
}
