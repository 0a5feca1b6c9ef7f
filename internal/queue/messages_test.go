package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		attempts int
		expected time.Duration
	}{
		{1, 60 * time.Second},
		{2, 120 * time.Second},
		{3, 240 * time.Second},
		{4, 480 * time.Second},
		{6, 1920 * time.Second},
		{7, 3600 * time.Second}, // 60*64 caps at one hour
		{20, 3600 * time.Second},
		{0, 60 * time.Second}, // treated as first attempt
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, RetryDelay(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage(MessageParse, "run_abc", "konzum")

	assert.Regexp(t, "^msg_", msg.ID)
	assert.Equal(t, MessageParse, msg.Type)
	assert.Equal(t, "run_abc", msg.RunID)
	assert.Equal(t, "konzum", msg.ChainSlug)
	assert.WithinDuration(t, time.Now().UTC(), msg.CreatedAt, time.Second)
	assert.NoError(t, msg.Validate())
}

func TestMessageValidate(t *testing.T) {
	t.Run("unknown type", func(t *testing.T) {
		msg := NewMessage("reindex", "run_abc", "konzum")
		assert.Error(t, msg.Validate())
	})

	t.Run("missing run id", func(t *testing.T) {
		msg := NewMessage(MessagePersist, "", "konzum")
		assert.Error(t, msg.Validate())
	})

	t.Run("enrich_store needs no run", func(t *testing.T) {
		msg := NewMessage(MessageEnrichStore, "", "konzum")
		msg.StoreID = "store_xyz"
		assert.NoError(t, msg.Validate())
	})
}

func TestMessageWireRoundTrip(t *testing.T) {
	msg := NewMessage(MessagePersistChunk, "run_abc", "lidl")
	msg.ChunkID = "chk_1"
	msg.ChunkIndex = 3
	msg.StoreIdentifier = "265"
	msg.Attempts = 2

	data, err := msg.Encode()
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, decoded.ID)
	assert.Equal(t, msg.ChunkIndex, decoded.ChunkIndex)
	assert.Equal(t, msg.Attempts, decoded.Attempts)
	assert.True(t, msg.CreatedAt.Equal(decoded.CreatedAt))
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	_, err := DecodeMessage([]byte("not json"))
	assert.Error(t, err)
}
