package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/config"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, zap.NewNop())

	p.Publish(context.Background(), New(TypeDoctorApproved, "doc-1", map[string]string{"doctor_id": "doc-1"}))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "doc-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, TypeDoctorApproved, string(msg.Headers[0].Value))

	var e Event
	require.NoError(t, json.Unmarshal(msg.Value, &e))
	assert.Equal(t, TypeDoctorApproved, e.Type)
	assert.Equal(t, "doc-1", e.Data["doctor_id"])
	assert.NotEmpty(t, e.ID)
}

func TestKafkaPublisher_WriteErrorSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewKafkaPublisher(w, zap.NewNop())

	assert.NotPanics(t, func() {
		p.Publish(context.Background(), New(TypeSlotBooked, "doc-1", nil))
	})
}

func TestNewPublisher_DisabledIsNop(t *testing.T) {
	p := NewPublisher(&config.EventsConfig{Topic: "x"}, zap.NewNop())
	_, ok := p.(Nop)
	assert.True(t, ok)
	assert.NoError(t, p.Close())
}
