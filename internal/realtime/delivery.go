package realtime

import (
	"context"
	"log/slog"

	chatmodel "converse/internal/model/chat"
)

// Delivery is the coordinator between the message log and the gateway: it
// consumes persisted message views and issues independent broadcasts into
// each recipient's personal room. At-most-once, best effort; nothing is
// queued for members who are offline.
type Delivery struct {
	hub   *Hub
	queue chan chatmodel.MessageView
	log   *slog.Logger
}

const deliveryBuffer = 64

func NewDelivery(hub *Hub, log *slog.Logger) *Delivery {
	return &Delivery{
		hub:   hub,
		queue: make(chan chatmodel.MessageView, deliveryBuffer),
		log:   log,
	}
}

// Publish hands a persisted message to the coordinator without blocking
// the sender's request. Satisfies the message service's Publisher.
func (d *Delivery) Publish(msg chatmodel.MessageView) {
	select {
	case d.queue <- msg:
	default:
		d.log.Warn("delivery queue full, dropping message event", "message", msg.ID)
	}
}

// Run drains the queue until the context is cancelled.
func (d *Delivery) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-d.queue:
			d.hub.DeliverMessage(msg)
		}
	}
}
