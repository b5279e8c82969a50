package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/phone-marketplace/internal/model"
)

const idempotencyTTL = 24 * time.Hour

// Deduper remembers which keys were already handled.
type Deduper interface {
	// FirstSeen marks key as handled and reports whether it was new.
	FirstSeen(ctx context.Context, key string) (bool, error)
}

// Broadcaster hands events to live listeners.
type Broadcaster interface {
	Broadcast(e model.OrderEvent) int
}

type redisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client) Deduper {
	return &redisDeduper{client: client, ttl: idempotencyTTL}
}

func (d *redisDeduper) FirstSeen(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return ok, nil
}

// OrderWorker relays new-order events from RabbitMQ to the notification hub.
type OrderWorker struct {
	channel *amqp.Channel
	dedupe  Deduper
	hub     Broadcaster
	log     *slog.Logger
	done    chan struct{}
}

func NewOrderWorker(ch *amqp.Channel, dedupe Deduper, hub Broadcaster, log *slog.Logger) *OrderWorker {
	return &OrderWorker{
		channel: ch,
		dedupe:  dedupe,
		hub:     hub,
		log:     log,
		done:    make(chan struct{}),
	}
}

func (w *OrderWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(orderQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("order event worker started")
	return nil
}

func (w *OrderWorker) Stop() { close(w.done) }

func (w *OrderWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event model.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		w.log.Error("unmarshal order event", "error", err)
		_ = msg.Nack(false, false)
		return
	}
	if event.Event != model.EventNewOrder || event.OrderID == uuid.Nil {
		w.log.Error("malformed order event", "event", event.Event, "order_id", event.OrderID)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", event.OrderID)

	first, err := w.dedupe.FirstSeen(ctx, "order_notified:"+event.OrderID.String())
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if !first {
		log.Info("order event already delivered, skipping")
		_ = msg.Ack(false)
		return
	}

	n := w.hub.Broadcast(event)
	_ = msg.Ack(false)
	log.Info("order event delivered", "listeners", n)
}
