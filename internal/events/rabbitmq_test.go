package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	xerrors "Greeter-Service/internal/errors"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	if exchange != "" {
		return errors.New("unexpected exchange")
	}
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRabbitMQPublisherPublish(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitMQPublisher{ch: ch, queue: "greeter.lifecycle"}

	at := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	err := p.Publish(context.Background(), Event{
		Type:       TypeStarted,
		InstanceID: "3f0c7a8e",
		Address:    ":8080",
		Source:     "env",
		OccurredAt: at,
	})
	require.NoError(t, err)
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, []string{"greeter.lifecycle"}, ch.keys)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "3f0c7a8e:started", msg.MessageId)
	assert.Equal(t, "started", msg.Type)
	assert.Equal(t, at, msg.Timestamp)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, TypeStarted, decoded.Type)
	assert.Equal(t, ":8080", decoded.Address)
	assert.True(t, at.Equal(decoded.OccurredAt))
}

func TestRabbitMQPublisherFillsTimestamp(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitMQPublisher{ch: ch, queue: "q"}

	require.NoError(t, p.Publish(context.Background(), Event{Type: TypeStopped, InstanceID: "id"}))
	require.Len(t, ch.published, 1)
	assert.False(t, ch.published[0].Timestamp.IsZero())
}

func TestRabbitMQPublisherErrors(t *testing.T) {
	p := &RabbitMQPublisher{ch: &fakeChannel{err: errors.New("channel closed")}, queue: "q"}
	err := p.Publish(context.Background(), Event{Type: TypeStarted})
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeQueueFailure, xerrors.CodeOf(err))

	var nilPublisher *RabbitMQPublisher
	err = nilPublisher.Publish(context.Background(), Event{})
	assert.Equal(t, xerrors.CodeInitializationFailure, xerrors.CodeOf(err))
	assert.NoError(t, nilPublisher.Close())
}

func TestRabbitMQPublisherClose(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitMQPublisher{ch: ch, queue: "q"}
	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestNewRabbitMQPublisherRequiresURL(t *testing.T) {
	_, err := NewRabbitMQPublisher(RabbitMQConfig{})
	require.Error(t, err)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: TypeStarted}))
	assert.NoError(t, p.Close())
}
