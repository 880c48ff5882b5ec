package events

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guestwatch/internal/config"
	"guestwatch/internal/dispatch"
	"guestwatch/internal/metrics"
)

type capturedDispatch struct {
	Guest dispatch.GuestSnapshot
	Hotel dispatch.HotelSnapshot
}

type fakeTrigger struct {
	mu    sync.Mutex
	calls []capturedDispatch
}

func (f *fakeTrigger) Dispatch(guest dispatch.GuestSnapshot, hotel dispatch.HotelSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, capturedDispatch{Guest: guest, Hotel: hotel})
}

func (f *fakeTrigger) all() []capturedDispatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedDispatch(nil), f.calls...)
}

func newTestConsumer(trigger *fakeTrigger) *Consumer {
	return &Consumer{
		config:     &config.Config{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		dispatcher: trigger,
		collector:  metrics.NewCollector(prometheus.NewRegistry()),
	}
}

func TestProcessMessageDispatchesEvent(t *testing.T) {
	trigger := &fakeTrigger{}
	consumer := newTestConsumer(trigger)

	message := &kafka.Message{
		Value: []byte(`{
			"id": "evt-1",
			"guest": {"id": "guest-1", "name": "John Doe", "id_number": "X123", "phone": "555", "room_number": "101"},
			"hotel": {"id": "hotel-1", "name": "Grand", "pin_code": "400001"}
		}`),
	}

	require.NoError(t, consumer.processMessage(message))

	calls := trigger.all()
	require.Len(t, calls, 1)
	assert.Equal(t, "guest-1", calls[0].Guest.ID)
	assert.Equal(t, "X123", calls[0].Guest.IDNumber)
	assert.Equal(t, "400001", calls[0].Hotel.PinCode)
}

func TestProcessMessageRejectsMalformedPayload(t *testing.T) {
	trigger := &fakeTrigger{}
	consumer := newTestConsumer(trigger)

	err := consumer.processMessage(&kafka.Message{Value: []byte("not json")})
	assert.Error(t, err)
	assert.Empty(t, trigger.all())
}

func TestProcessMessageRejectsMissingGuestID(t *testing.T) {
	trigger := &fakeTrigger{}
	consumer := newTestConsumer(trigger)

	message := &kafka.Message{
		Value: []byte(`{"id": "evt-2", "guest": {"name": "Nameless"}, "hotel": {"id": "hotel-1"}}`),
	}

	err := consumer.processMessage(message)
	assert.Error(t, err)
	assert.Empty(t, trigger.all())
}
