package gateway

import (
	"context"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/bus"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
)

// SlackSocketListener receives Slack events over Socket Mode and publishes
// the raw envelopes to the delivery bus. Socket Mode needs no public webhook
// endpoint, which suits deployments behind NAT.
type SlackSocketListener struct {
	client     *socketmode.Client
	deliveries *bus.DeliveryBus
}

// NewSlackSocketListener builds a listener over api, which must have been
// constructed with an app-level token.
func NewSlackSocketListener(api *slack.Client, deliveries *bus.DeliveryBus) *SlackSocketListener {
	return &SlackSocketListener{
		client:     socketmode.New(api),
		deliveries: deliveries,
	}
}

// Run pumps events until ctx is cancelled. Events are acknowledged to Slack
// before processing; Socket Mode redelivers unacked events, and the pipeline
// has its own dedup.
func (l *SlackSocketListener) Run(ctx context.Context) error {
	go func() {
		for evt := range l.client.Events {
			switch evt.Type {
			case socketmode.EventTypeConnected:
				logger.InfoC("gateway", "Slack socket connected")
			case socketmode.EventTypeConnectionError:
				logger.WarnC("gateway", "Slack socket connection error")
			case socketmode.EventTypeEventsAPI:
				if evt.Request == nil {
					continue
				}
				l.client.Ack(*evt.Request)
				d := bus.Delivery{
					Platform:   bridge.PlatformSlack,
					Payload:    []byte(evt.Request.Payload),
					ReceivedAt: time.Now(),
				}
				if err := l.deliveries.Publish(ctx, d); err != nil {
					logger.WarnCF("gateway", "Slack delivery dropped", map[string]any{
						"error": err.Error(),
					})
				}
			}
		}
	}()

	return l.client.RunContext(ctx)
}
