// Package notify pushes operator alerts about evaluation accounts (breaches,
// stage passes, payout requests) to Telegram and Discord. Alerts are filtered
// by event type so operators receive only the ones they care about.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sender delivers alerts over one channel.
type Sender interface {
	Send(ctx context.Context, a Alert) error
	Name() string
}

// Notifier fans account alerts out to its senders, dropping event types
// operators did not opt into.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify forwards a to every sender when its event is allowed.
func (n *Notifier) Notify(ctx context.Context, a Alert) error {
	if len(n.events) > 0 && !n.events[a.Event] {
		n.logger.DebugContext(ctx, "alert filtered out",
			slog.String("event", a.Event),
			slog.String("account_id", a.AccountID),
		)
		return nil
	}
	return n.dispatch(ctx, a)
}

// dispatch tries every sender and joins their failures.
func (n *Notifier) dispatch(ctx context.Context, a Alert) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, a); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("event", a.Event),
				slog.String("account_id", a.AccountID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "alert sent",
				slog.String("sender", s.Name()),
				slog.String("event", a.Event),
				slog.String("account_id", a.AccountID),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %s for %s: %d sender(s) failed: %s",
			a.Event, a.AccountID, len(errs), strings.Join(errs, "; "))
	}
	return nil
}
