// Package notify delivers best-effort Slack notifications.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/slack-go/slack"
)

type SlackNotifier struct {
	log    *slog.Logger
	client *slack.Client
}

func NewSlackNotifier(log *slog.Logger, token string) *SlackNotifier {
	return &SlackNotifier{
		log:    log,
		client: slack.New(token),
	}
}

// Notify posts message to the named channel. Callers treat failures as
// log-only; nothing in the pipeline depends on delivery.
func (n *SlackNotifier) Notify(ctx context.Context, message, channel string) error {
	n.log.DebugContext(ctx, "sending slack message", slog.String("channel", channel))

	_, _, err := n.client.PostMessageContext(
		ctx,
		"#"+channel,
		slack.MsgOptionText(message, false),
	)
	if err != nil {
		return fmt.Errorf("failed to post to %s: %w", channel, err)
	}

	return nil
}
