package notify

import (
	"context"
	"log/slog"

	"github.com/quollhq/aegis/internal/mfa/domain"
	"github.com/quollhq/aegis/pkg/slogx"
)

// LogDispatcher writes the code to the structured log instead of sending
// it anywhere. It stands in for an SMS gateway (or mail server) in dev
// environments. Never wire it up in production.
type LogDispatcher struct{}

func (LogDispatcher) Send(ctx context.Context, channel domain.FactorType, destination, code string, purpose domain.ChallengePurpose) error {
	slogx.FromContext(ctx).Warn("otp dispatched to log, dev transport only",
		slog.String("channel", string(channel)),
		slog.String("destination", destination),
		slog.String("purpose", string(purpose)),
		slog.String("code", code),
	)
	return nil
}
