package gateway

import (
	"context"
	"encoding/json"
	"time"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
	"github.com/tinyland-inc/larkbridge/pkg/bus"
	"github.com/tinyland-inc/larkbridge/pkg/logger"
)

// LarkWSListener receives Lark events over the long connection and publishes
// them to the delivery bus re-wrapped in the schema 2.0 envelope, so the
// pipeline sees the same shape as a webhook delivery.
type LarkWSListener struct {
	client *larkws.Client
}

// NewLarkWSListener builds a listener. baseDomain may be empty.
// verificationToken is stamped into the re-wrapped envelope so the
// normalizer's token check passes for deliveries that arrived over the
// already-authenticated connection.
func NewLarkWSListener(appID, appSecret, baseDomain, verificationToken string, deliveries *bus.DeliveryBus) *LarkWSListener {
	eventDispatcher := dispatcher.NewEventDispatcher("", "")
	eventDispatcher.OnP2MessageReceiveV1(func(ctx context.Context, event *larkim.P2MessageReceiveV1) error {
		payload, err := wrapV2Envelope(verificationToken, event)
		if err != nil {
			logger.WarnCF("gateway", "Lark event re-wrap failed", map[string]any{
				"error": err.Error(),
			})
			return nil
		}
		d := bus.Delivery{
			Platform:   bridge.PlatformLark,
			Payload:    payload,
			ReceivedAt: time.Now(),
		}
		if err := deliveries.Publish(ctx, d); err != nil {
			logger.WarnCF("gateway", "Lark delivery dropped", map[string]any{
				"error": err.Error(),
			})
		}
		return nil
	})

	opts := []larkws.ClientOption{
		larkws.WithEventHandler(eventDispatcher),
		larkws.WithLogLevel(larkcore.LogLevelWarn),
	}
	if baseDomain != "" {
		opts = append(opts, larkws.WithDomain(baseDomain))
	}
	return &LarkWSListener{client: larkws.NewClient(appID, appSecret, opts...)}
}

// Run connects and pumps events. The client stops when ctx is cancelled.
func (l *LarkWSListener) Run(ctx context.Context) error {
	logger.InfoC("gateway", "Lark long connection starting")
	return l.client.Start(ctx)
}

// wrapV2Envelope rebuilds the schema 2.0 webhook envelope around an event
// received over the long connection, carrying token so the envelope passes
// the same verification as a webhook delivery.
func wrapV2Envelope(token string, event *larkim.P2MessageReceiveV1) ([]byte, error) {
	header := map[string]any{
		"event_type": "im.message.receive_v1",
		"token":      token,
	}
	if event.EventV2Base != nil && event.EventV2Base.Header != nil {
		header["event_id"] = event.EventV2Base.Header.EventID
	}
	envelope := map[string]any{
		"schema": "2.0",
		"header": header,
		"event":  event.Event,
	}
	return json.Marshal(envelope)
}
