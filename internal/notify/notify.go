// Package notify delivers unit alerts to external push channels.
// Delivery is best-effort: a Dispatcher logs every channel failure and never
// returns it, so a broken push endpoint cannot abort a run.
package notify

import (
	"context"
	"time"

	"github.com/rewired-gh/elecwatch/internal/logger"
	"github.com/rewired-gh/elecwatch/internal/models"
)

// Message is one alert ready for delivery.
type Message struct {
	Title string
	Body  string   // markdown
	Lines []string // plain-text alert lines, for channels without full markdown
}

// Notifier delivers alerts to one external channel.
type Notifier interface {
	// Name returns the channel identifier used in logs.
	Name() string
	// Send delivers msg on behalf of unit.
	Send(ctx context.Context, unit models.Unit, msg Message) error
}

// Dispatcher fans a message out to every configured channel.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
}

// NewDispatcher creates a dispatcher. timeout bounds each channel's Send; zero
// leaves it to the channel.
func NewDispatcher(timeout time.Duration, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, timeout: timeout}
}

// Channels returns the number of configured channels.
func (d *Dispatcher) Channels() int {
	return len(d.notifiers)
}

// Notify sends msg on every channel and returns how many succeeded.
func (d *Dispatcher) Notify(ctx context.Context, unit models.Unit, msg Message) int {
	delivered := 0
	for _, n := range d.notifiers {
		if err := d.send(ctx, n, unit, msg); err != nil {
			logger.Warn("Failed to send %s notification for unit %s: %v", n.Name(), unit.Key(), err)
			continue
		}
		delivered++
	}
	return delivered
}

func (d *Dispatcher) send(ctx context.Context, n Notifier, unit models.Unit, msg Message) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	return n.Send(ctx, unit, msg)
}
