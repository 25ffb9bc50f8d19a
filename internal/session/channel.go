package session

import (
	"context"
	"time"

	"github.com/desertthunder/mediasync/internal/push"
)

// Channel is an established push connection. [push.Client] implements it.
type Channel interface {
	Messages() <-chan push.Message
	SendActivity(at time.Time) error
	Close() error
	// Done is closed when the channel ends, locally or not.
	Done() <-chan struct{}
	// Err is nil after a local Close and non-nil after an unexpected loss.
	Err() error
}

// Dialer opens a [Channel]. Dial must honour ctx cancellation.
type Dialer interface {
	Dial(ctx context.Context) (Channel, error)
}

// DialFunc adapts a function to [Dialer].
type DialFunc func(ctx context.Context) (Channel, error)

func (f DialFunc) Dial(ctx context.Context) (Channel, error) { return f(ctx) }

// PushDialer adapts a [push.Dialer].
func PushDialer(d *push.Dialer) Dialer {
	return DialFunc(func(ctx context.Context) (Channel, error) {
		client, err := d.Dial(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
}
