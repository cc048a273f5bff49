// Package sink contains notification sinks. SlackSink posts to Slack;
// LogSink writes to the process log for token-less development runs.
package sink

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"
)

type SlackSink struct {
	client *slack.Client
}

func NewSlackSink(token string) *SlackSink {
	return &SlackSink{client: slack.New(token)}
}

func (s *SlackSink) Send(ctx context.Context, recipient, text string) error {
	_, _, err := s.client.PostMessageContext(ctx, recipient,
		slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("post message to %s: %w", recipient, err)
	}
	return nil
}

type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) Send(ctx context.Context, recipient, text string) error {
	log.Printf("sink: [%s] %s", recipient, text)
	return nil
}
