package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMalformedLink is returned when text does not hold an encoded link.
var ErrMalformedLink = errors.New("malformed link encoding")

// Link represents the association between a source message and its relayed copy.
type Link struct {
	// DestinationMessageID is the id of the relayed copy in the destination channel.
	DestinationMessageID ID `json:"destination_message_id"`

	// SourceMessageID is the id of the approved message in the source channel.
	SourceMessageID ID `json:"source_message_id"`

	// LinkMessageID is the bot reply in the source channel that carries the encoding.
	LinkMessageID ID `json:"link_message_id,omitempty"`

	// SourceChannelID is the channel both the source and the link message live in.
	SourceChannelID ID `json:"source_channel_id,omitempty"`

	// DestinationChannelID is the channel the copy was published to.
	DestinationChannelID ID `json:"destination_channel_id,omitempty"`

	// Timestamp indicates when the link was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// Encode renders the link as "{destinationMessageId}:{sourceMessageId}".
func (l Link) Encode() string {
	return fmt.Sprintf("%d:%d", uint64(l.DestinationMessageID), uint64(l.SourceMessageID))
}

// ParseLink decodes "{destinationMessageId}:{sourceMessageId}". Both halves must be
// unsigned 64-bit decimal integers; surrounding whitespace is tolerated.
func ParseLink(text string) (Link, error) {
	first, second, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return Link{}, ErrMalformedLink
	}
	dest, err := strconv.ParseUint(first, 10, 64)
	if err != nil {
		return Link{}, fmt.Errorf("%w: destination id %q", ErrMalformedLink, first)
	}
	src, err := strconv.ParseUint(second, 10, 64)
	if err != nil {
		return Link{}, fmt.Errorf("%w: source id %q", ErrMalformedLink, second)
	}
	return Link{DestinationMessageID: ID(dest), SourceMessageID: ID(src)}, nil
}
