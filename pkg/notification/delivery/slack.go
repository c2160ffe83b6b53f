package delivery

import (
	"context"

	"github.com/slack-go/slack"
)

// poster is the subset of *slack.Client the service needs; tests substitute
// a fake so delivery logic can be exercised without a real Slack workspace.
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackDeliveryService posts a Notification to a fixed Slack channel.
type SlackDeliveryService struct {
	client    poster
	channelID string
}

func NewSlackDeliveryService(token, channelID string) *SlackDeliveryService {
	return &SlackDeliveryService{client: slack.New(token), channelID: channelID}
}

func (s *SlackDeliveryService) Deliver(ctx context.Context, n *Notification) error {
	msg := n.Subject
	if n.Body != "" {
		msg += "\n" + n.Body
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(msg, false))
	if err != nil {
		return &RetryableError{Op: "failed to post slack message", Err: err}
	}
	return nil
}
