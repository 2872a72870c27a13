// Package bus queues raw inbound deliveries from the streaming ingress paths
// (Slack Socket Mode, Lark long connection) for the pipeline workers. The
// HTTP webhook path stays synchronous for acknowledgement semantics and does
// not pass through here.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tinyland-inc/larkbridge/pkg/bridge"
)

// ErrBusClosed is returned when publishing to a closed DeliveryBus.
var ErrBusClosed = errors.New("delivery bus closed")

// Delivery is one raw inbound payload awaiting pipeline processing.
type Delivery struct {
	Platform   bridge.Platform
	Payload    []byte
	ReceivedAt time.Time
}

type DeliveryBus struct {
	deliveries chan Delivery
	done       chan struct{}
	closed     atomic.Bool
}

func NewDeliveryBus() *DeliveryBus {
	return &DeliveryBus{
		deliveries: make(chan Delivery, 100),
		done:       make(chan struct{}),
	}
}

func (b *DeliveryBus) Publish(ctx context.Context, d Delivery) error {
	if b.closed.Load() {
		return ErrBusClosed
	}
	select {
	case b.deliveries <- d:
		return nil
	case <-b.done:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *DeliveryBus) Consume(ctx context.Context) (Delivery, bool) {
	select {
	case d, ok := <-b.deliveries:
		return d, ok
	case <-b.done:
		return Delivery{}, false
	case <-ctx.Done():
		return Delivery{}, false
	}
}

func (b *DeliveryBus) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.done)
	}
}
