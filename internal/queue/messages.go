package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/damir5/kosarica-sub000/internal/pkg/cuid2"
	"github.com/damir5/kosarica-sub000/internal/types"
)

// MessageType enumerates every queue message the pipeline exchanges.
type MessageType string

const (
	MessageDiscover     MessageType = "discover"
	MessageFetch        MessageType = "fetch"
	MessageExpand       MessageType = "expand"
	MessageParse        MessageType = "parse"
	MessageParseChunked MessageType = "parse_chunked"
	MessagePersist      MessageType = "persist"
	MessagePersistChunk MessageType = "persist_chunk"
	MessageRerun        MessageType = "rerun"
	MessageEnrichStore  MessageType = "enrich_store"
)

// MessageTypes lists all valid message types, in pipeline order.
var MessageTypes = []MessageType{
	MessageDiscover,
	MessageFetch,
	MessageExpand,
	MessageParse,
	MessageParseChunked,
	MessagePersist,
	MessagePersistChunk,
	MessageRerun,
	MessageEnrichStore,
}

// Message is the envelope every pipeline transition travels in. The typed
// payload fields are populated per message type; unused ones stay empty.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	RunID     string      `json:"runId"`
	ChainSlug string      `json:"chainSlug"`
	CreatedAt time.Time   `json:"createdAt"`
	// Attempts counts deliveries; incremented on every retry reschedule.
	Attempts int `json:"attempts,omitempty"`

	// discover
	TargetDate  string `json:"targetDate,omitempty"`  // YYYY-MM-DD
	StoreFilter string `json:"storeFilter,omitempty"` // store identifier value

	// fetch / expand / parse
	File       *types.DiscoveredFile `json:"file,omitempty"`
	FileID     string                `json:"fileId,omitempty"`
	StorageKey string                `json:"storageKey,omitempty"`
	FileHash   string                `json:"fileHash,omitempty"`
	// EntryName is the inner filename of one expanded entry; empty for a
	// plain (non-ZIP) file with a single entry.
	EntryName string `json:"entryName,omitempty"`

	// persist / persist_chunk
	ChunkID         string `json:"chunkId,omitempty"`
	ChunkIndex      int    `json:"chunkIndex,omitempty"`
	StoreIdentifier string `json:"storeIdentifier,omitempty"`

	// rerun
	RerunType     string `json:"rerunType,omitempty"` // 'run', 'file', 'chunk'
	RerunTargetID string `json:"rerunTargetId,omitempty"`

	// enrich_store
	StoreID string `json:"storeId,omitempty"`
}

// NewMessage builds an envelope with a fresh msg_ id and creation timestamp.
func NewMessage(msgType MessageType, runID, chainSlug string) Message {
	return Message{
		ID:        cuid2.GeneratePrefixedId("msg", cuid2.PrefixedIdOptions{}),
		Type:      msgType,
		RunID:     runID,
		ChainSlug: chainSlug,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks the envelope invariants shared by all message types.
func (m Message) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("message missing id")
	}
	valid := false
	for _, t := range MessageTypes {
		if m.Type == t {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	if m.Type != MessageEnrichStore && m.RunID == "" {
		return fmt.Errorf("%s message missing runId", m.Type)
	}
	return nil
}

// Encode serializes the message for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage parses a wire payload back into a Message.
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode queue message: %w", err)
	}
	return m, nil
}
