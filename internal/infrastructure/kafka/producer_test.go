package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taggedEvent struct {
	Kind      string `json:"kind"`
	ProductID string `json:"product_id"`
}

func (e taggedEvent) EventKind() string { return e.Kind }

// ============================================
// Message Construction
// ============================================

func TestNewMessage_KeyAndKindHeader(t *testing.T) {
	event := taggedEvent{Kind: "alert_raised", ProductID: "prod-1"}

	msg, err := newMessage("prod-1", event)

	require.NoError(t, err)
	assert.Equal(t, []byte("prod-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "kind", msg.Headers[0].Key)
	assert.Equal(t, []byte("alert_raised"), msg.Headers[0].Value)

	var decoded taggedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event, decoded)
}

func TestNewMessage_UntaggedEventHasNoHeaders(t *testing.T) {
	msg, err := newMessage("k", map[string]string{"a": "b"})

	require.NoError(t, err)
	assert.Empty(t, msg.Headers)
}

func TestNewMessage_UnmarshalableEvent(t *testing.T) {
	_, err := newMessage("k", func() {})

	assert.Error(t, err)
}
