package notify

import (
	"context"
	"sync"

	"github.com/quollhq/aegis/internal/mfa/domain"
)

// Delivery is one captured Send call.
type Delivery struct {
	Channel     domain.FactorType
	Destination string
	Code        string
	Purpose     domain.ChallengePurpose
}

// Capture records deliveries instead of sending them. Used by tests that
// need to read back the code a service issued.
type Capture struct {
	mu         sync.Mutex
	deliveries []Delivery
	Err        error // returned from Send when set
}

func (c *Capture) Send(ctx context.Context, channel domain.FactorType, destination, code string, purpose domain.ChallengePurpose) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries = append(c.deliveries, Delivery{
		Channel:     channel,
		Destination: destination,
		Code:        code,
		Purpose:     purpose,
	})
	return nil
}

// Deliveries returns a copy of everything captured so far.
func (c *Capture) Deliveries() []Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Delivery, len(c.deliveries))
	copy(out, c.deliveries)
	return out
}

// Last returns the most recent delivery, or false when nothing was sent.
func (c *Capture) Last() (Delivery, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.deliveries) == 0 {
		return Delivery{}, false
	}
	return c.deliveries[len(c.deliveries)-1], true
}
