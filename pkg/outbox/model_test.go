package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	ev, err := NewEvent("purchase", "7", "DeliveryConfirmed", map[string]any{"tokenId": 7}, "00-abc-def-01")
	require.NoError(t, err)

	assert.JSONEq(t, `{"tokenId":7}`, string(ev.Payload))
	assert.Equal(t, StatusPending, ev.Status)
	assert.Equal(t, "purchase:7", ev.Key())
	assert.Equal(t, map[string]string{HeaderAggregateType: "purchase"}, ev.Headers)
	assert.Equal(t, "00-abc-def-01", ev.Traceparent)

	_, err = NewEvent("purchase", "7", "Bad", make(chan int), "")
	assert.Error(t, err)
}
