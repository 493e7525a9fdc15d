package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"associate-ledger/internal/service/ledger/domain"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaEventPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	pub := NewKafkaEventPublisher(w)

	events := []domain.Event{
		{Type: domain.EventOrderPlaced, Associate: "carol", OrderID: 1, Amount: 3000, OccurredAt: 10},
		{Type: domain.EventReferralBonusCredited, Associate: "bob", Counterparty: "carol", OrderID: 1, Level: 1, Amount: 1000, OccurredAt: 10},
	}
	require.NoError(t, pub.Publish(context.Background(), events))
	require.Len(t, w.msgs, 2)

	assert.Equal(t, "bob", string(w.msgs[1].Key))
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &body))
	assert.Equal(t, "ReferralBonusCredited", body["type"])
	assert.Equal(t, "carol", body["counterparty"])
	assert.EqualValues(t, 1000, body["amount"])
	assert.NotEmpty(t, body["eventId"])

	var eventType string
	for _, h := range w.msgs[1].Headers {
		if h.Key == "event-type" {
			eventType = string(h.Value)
		}
	}
	assert.Equal(t, "ReferralBonusCredited", eventType)
}

func TestKafkaEventPublisher_WriteError(t *testing.T) {
	pub := NewKafkaEventPublisher(&fakeWriter{err: errors.New("broker down")})
	err := pub.Publish(context.Background(), []domain.Event{{Type: domain.EventPayoutRequested, Associate: "a"}})
	assert.ErrorContains(t, err, "broker down")
}
