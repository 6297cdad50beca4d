package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{6, 30 * time.Second},
		{40, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, exponentialBackoff(tt.attempt))
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"amqp closed", amqp091.ErrClosed, true},
		{"wrapped amqp closed", fmt.Errorf("consume: %w", amqp091.ErrClosed), true},
		{"connection refused", errors.New("dial tcp: connection refused"), true},
		{"channel closed", errors.New("message channel closed"), true},
		{"eof", io.EOF, true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"other", errors.New("queue not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isConnectionError(tt.err))
		})
	}
}

func TestCircuitBreaker(t *testing.T) {
	c := &Client{}
	assert.False(t, c.isCircuitOpen())

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	assert.False(t, c.isCircuitOpen(), "below threshold")

	c.recordFailure()
	assert.True(t, c.isCircuitOpen())

	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	assert.False(t, c.isCircuitOpen(), "half-open after timeout")
	assert.Equal(t, StateHalfOpen, c.state)

	c.recordSuccess()
	assert.Equal(t, StateClosed, c.state)
	assert.Zero(t, c.failureCount)
}

func TestMemoSavedMessageJSON(t *testing.T) {
	msg := NewMemoSavedMessage("maeda", 2024, []string{"self", "grandchild4"})
	msg.Timestamp = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	data, err := msg.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"username": "maeda",
		"year": 2024,
		"roles": ["self", "grandchild4"],
		"timestamp": "2024-05-01T10:00:00Z"
	}`, string(data))

	got, err := MemoSavedMessageFromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, msg.Username, got.Username)
	assert.Equal(t, msg.Roles, got.Roles)
	assert.True(t, msg.Timestamp.Equal(got.Timestamp))
}

func TestMemoSavedMessageFromJSONRejectsBadInput(t *testing.T) {
	_, err := MemoSavedMessageFromJSON([]byte("{not json"))
	assert.Error(t, err)

	_, err = MemoSavedMessageFromJSON([]byte(`{"year": 2024}`))
	assert.Error(t, err)
}

func TestPublishHonoursCancelledContext(t *testing.T) {
	c := &Client{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.PublishMemoSaved(ctx, NewMemoSavedMessage("u", 2024, nil))
	assert.ErrorIs(t, err, context.Canceled)
}
