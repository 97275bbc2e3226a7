package notify

import (
	"context"
	"log/slog"

	"github.com/BearBump/RequestBox/internal/models"
)

// Message — одно уведомление оператору о новой заявке.
type Message struct {
	From        string
	To          string
	Subject     string
	PlainBody   string
	HTMLBody    string
	Attachments []*models.EncodedAttachment
}

// Channel is one concrete transport for operator notifications.
// Send returns the provider message id on success. Implementations must not
// mutate msg or its attachments: the dispatcher reuses them across attempts.
type Channel interface {
	Name() string
	Configured() bool
	Send(ctx context.Context, msg Message) (string, error)
}

// Dispatcher tries channels in a deterministic order and reports exactly one
// outcome per message, including the NONE outcome when nothing is configured
// or everything failed.
type Dispatcher struct {
	primary Channel
	smtp    Channel
}

func NewDispatcher(primary, smtp Channel) *Dispatcher {
	return &Dispatcher{primary: primary, smtp: smtp}
}

// Send walks the channel chain: with attachments SMTP goes first (attachment
// delivery over SMTP is considered more reliable than over the API), then the
// primary API, then SMTP as fallback. Each configured channel is attempted at
// most once. Channel failure is never fatal for the caller.
func (d *Dispatcher) Send(ctx context.Context, msg Message) models.NotificationOutcome {
	var lastErr error

	for _, ch := range d.order(len(msg.Attachments) > 0) {
		id, err := ch.Send(ctx, msg)
		if err != nil {
			lastErr = err
			slog.Warn("notification channel failed", "channel", ch.Name(), "err", err)
			continue
		}
		out := models.NotificationOutcome{Channel: ch.Name()}
		if id != "" {
			out.MessageID = &id
		}
		return out
	}

	out := models.NotificationOutcome{Channel: models.ChannelNone}
	if lastErr != nil {
		detail := lastErr.Error()
		out.Error = &detail
	}
	return out
}

func (d *Dispatcher) order(hasAttachments bool) []Channel {
	var chain []Channel
	if hasAttachments && configured(d.smtp) {
		chain = append(chain, d.smtp, d.primary)
	} else {
		chain = append(chain, d.primary, d.smtp)
	}

	out := make([]Channel, 0, len(chain))
	for _, ch := range chain {
		if configured(ch) {
			out = append(out, ch)
		}
	}
	return out
}

func configured(ch Channel) bool {
	return ch != nil && ch.Configured()
}
