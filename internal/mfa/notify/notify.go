// Package notify delivers one-time codes to users over out-of-band
// channels. The MFA services only ever talk to the Dispatcher interface;
// concrete transports (SMTP, an SMS gateway, a structured log in dev) are
// selected at wire-up time.
package notify

import (
	"context"
	"fmt"

	"github.com/quollhq/aegis/internal/mfa/domain"
)

// Dispatcher sends a one-time code to a destination over the channel the
// factor type implies. Implementations must not log the code at rest in
// production transports.
type Dispatcher interface {
	Send(ctx context.Context, channel domain.FactorType, destination, code string, purpose domain.ChallengePurpose) error
}

// Router fans out by channel so email and SMS can run different transports.
type Router struct {
	email Dispatcher
	sms   Dispatcher
}

func NewRouter(email, sms Dispatcher) *Router {
	return &Router{email: email, sms: sms}
}

func (r *Router) Send(ctx context.Context, channel domain.FactorType, destination, code string, purpose domain.ChallengePurpose) error {
	switch channel {
	case domain.FactorEmail:
		return r.email.Send(ctx, channel, destination, code, purpose)
	case domain.FactorSMS:
		return r.sms.Send(ctx, channel, destination, code, purpose)
	default:
		return fmt.Errorf("notify: no transport for channel %q", channel)
	}
}
