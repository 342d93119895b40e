package ingest

import (
	"github.com/google/uuid"

	"github.com/technosupport/ts-nms/internal/event"
)

// Envelope wraps one normalized event on the wire. The id lets the consumer
// drop broker redeliveries of an already-processed message.
type Envelope struct {
	ID    string       `json:"id"`
	Event *event.Event `json:"event"`
}

// NewEnvelope stamps an event with a fresh message id. Used by producers and
// by the replay tooling.
func NewEnvelope(e *event.Event) Envelope {
	return Envelope{ID: uuid.NewString(), Event: e}
}
