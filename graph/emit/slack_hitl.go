package emit

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackHITLNotifier subscribes to every graph's "hitl.*.requested"
// topic and posts a message to a configured channel so a human knows a
// run is waiting on them. It never blocks the runner: Start runs its
// subscription loop in a background goroutine.
type SlackHITLNotifier struct {
	client  *slack.Client
	channel string
	bus     LifecycleEventBus
}

// NewSlackHITLNotifier builds a notifier posting to channel via a Slack
// bot token, draining HITL requests from bus.
func NewSlackHITLNotifier(token, channel string, bus LifecycleEventBus) *SlackHITLNotifier {
	return &SlackHITLNotifier{client: slack.New(token), channel: channel, bus: bus}
}

// Start subscribes to topic (typically "hitl.{graphId}.{nodeId}.requested",
// or a bus-specific wildcard covering all graphs) and posts one message
// per event until ctx is cancelled.
func (n *SlackHITLNotifier) Start(ctx context.Context, topic string) (func(), error) {
	events, unsubscribe, err := n.bus.Subscribe(ctx, topic)
	if err != nil {
		return nil, err
	}
	go func() {
		for event := range events {
			text := fmt.Sprintf("run is waiting for input at node %q (topic %s)", event.NodeID, event.Topic)
			if _, _, err := n.client.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false)); err != nil {
				continue
			}
		}
	}()
	return unsubscribe, nil
}
