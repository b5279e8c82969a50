package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/phone-marketplace/internal/model"
	"github.com/flicky/phone-marketplace/internal/notify"
)

type ackRecorder struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }
func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}
func (a *ackRecorder) Reject(uint64, bool) error { return nil }

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *memDeduper) FirstSeen(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func newTestWorker(d Deduper) (*OrderWorker, *notify.Hub) {
	hub := notify.NewHub()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOrderWorker(nil, d, hub, log), hub
}

func delivery(t *testing.T, body any) (amqp.Delivery, *ackRecorder) {
	t.Helper()
	raw, ok := body.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	ack := &ackRecorder{}
	return amqp.Delivery{Acknowledger: ack, Body: raw}, ack
}

func TestProcessMessage_DeliversOnce(t *testing.T) {
	w, hub := newTestWorker(&memDeduper{seen: map[string]bool{}})
	events, cancel := hub.Subscribe()
	defer cancel()

	ev := model.OrderEvent{Event: model.EventNewOrder, OrderID: uuid.New(), BuyerName: "Bo", Total: decimal.NewFromInt(5), ItemCount: 1}

	msg, ack := delivery(t, ev)
	w.processMessage(context.Background(), msg)
	assert.Equal(t, 1, ack.acked)
	got := <-events
	assert.Equal(t, ev.OrderID, got.OrderID)
	assert.Equal(t, "Bo", got.BuyerName)

	msg, ack = delivery(t, ev)
	w.processMessage(context.Background(), msg)
	assert.Equal(t, 1, ack.acked)
	assert.Empty(t, events)
}

func TestProcessMessage_MalformedGoesToDLQ(t *testing.T) {
	w, _ := newTestWorker(&memDeduper{seen: map[string]bool{}})

	msg, ack := delivery(t, []byte("{not json"))
	w.processMessage(context.Background(), msg)
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)

	msg, ack = delivery(t, model.OrderEvent{Event: "other", OrderID: uuid.New()})
	w.processMessage(context.Background(), msg)
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue)
}

func TestProcessMessage_DedupeFailureRequeues(t *testing.T) {
	w, _ := newTestWorker(&memDeduper{err: errors.New("redis down")})

	msg, ack := delivery(t, model.OrderEvent{Event: model.EventNewOrder, OrderID: uuid.New()})
	w.processMessage(context.Background(), msg)
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)
}
