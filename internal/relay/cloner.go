package relay

import (
	"context"

	"relaybot/internal/domain"
)

// Cloner builds the description of what to (re)send for a source message.
type Cloner struct {
	materializer *Materializer
	limitBytes   uint32
}

// NewCloner creates a Cloner that materializes attachments under limitBytes.
func NewCloner(materializer *Materializer, limitBytes uint32) *Cloner {
	return &Cloner{materializer: materializer, limitBytes: limitBytes}
}

// Clone returns the ClonedMessage for msg. A reply is cloned as a bare
// reference with no body of its own.
func (c *Cloner) Clone(ctx context.Context, msg domain.Message) domain.ClonedMessage {
	if msg.Reference != nil {
		ref := *msg.Reference
		return domain.ClonedMessage{ReplyReference: &ref}
	}

	suffix, kept := c.materializer.Materialize(ctx, msg.Attachments, c.limitBytes)

	var stickers []domain.StickerRef
	if len(msg.Stickers) > 0 {
		stickers = append(stickers, msg.Stickers...)
	}
	return domain.ClonedMessage{
		Content:     msg.Content + suffix,
		Attachments: kept,
		Stickers:    stickers,
	}
}
