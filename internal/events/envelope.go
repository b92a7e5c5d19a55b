package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types, also used as routing keys.
const (
	TypeApproved = "relay.approved.v1"
	TypeEdited   = "relay.edited.v1"
	TypeDeleted  = "relay.deleted.v1"
)

// Producer names this service in event metadata.
const Producer = "relaybot"

type Meta struct {
	// Unique event ID
	ID string `json:"id"`
	// Groups every event emitted for one source message
	CorrelationID string `json:"correlation_id,omitempty"`
	// Emitting service
	Producer string `json:"producer,omitempty"`
	// Timestamp when the event was emitted
	Time time.Time `json:"time"`
	// Event name and version, e.g. relay.approved.v1
	Type string `json:"type"`
}

type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// RelayEvent describes one mutation of a relayed message.
type RelayEvent struct {
	SourceChannelID      string `json:"source_channel_id"`
	SourceMessageID      string `json:"source_message_id"`
	DestinationChannelID string `json:"destination_channel_id,omitempty"`
	DestinationMessageID string `json:"destination_message_id"`
	LinkMessageID        string `json:"link_message_id,omitempty"`
}

// NewEnvelope wraps data in a fresh envelope of the given type. The source
// message id is used as correlation id so consumers can group a message's history.
func NewEnvelope(eventType string, data RelayEvent) Envelope {
	return Envelope{
		Meta: Meta{
			ID:            uuid.NewString(),
			CorrelationID: data.SourceMessageID,
			Producer:      Producer,
			Time:          time.Now().UTC(),
			Type:          eventType,
		},
		Data: data,
	}
}
