package domain

import "strconv"

// ID is a platform snowflake: an unsigned 64-bit identifier.
type ID uint64

// ParseID parses a decimal snowflake.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ID(v), nil
}

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// IsZero reports whether the id is unset.
func (id ID) IsZero() bool { return id == 0 }

// MessageRef points at another message, possibly in another channel.
type MessageRef struct {
	MessageID ID `json:"message_id"`
	ChannelID ID `json:"channel_id"`
	GuildID   ID `json:"guild_id,omitempty"`
}

// StickerRef identifies a platform sticker.
type StickerRef struct {
	ID   ID     `json:"id"`
	Name string `json:"name,omitempty"`
}

// Attachment is a file attached to a source message.
type Attachment struct {
	ID       ID     `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     uint32 `json:"size"`
}

// DownloadedAttachment is an attachment re-materialized as bytes.
type DownloadedAttachment struct {
	Filename string
	Data     []byte
}

// Message is the platform-agnostic view of a chat message.
type Message struct {
	ID        ID
	ChannelID ID
	GuildID   ID
	AuthorID  ID
	Content   string

	// Reference is set when the message is itself a reply.
	Reference *MessageRef

	Attachments []Attachment
	Stickers    []StickerRef
}

// IsReplyTo reports whether m replies to the message with the given id.
func (m Message) IsReplyTo(id ID) bool {
	return m.Reference != nil && m.Reference.MessageID == id
}

// ClonedMessage describes what to (re)send for a source message. When
// ReplyReference is set every other field is empty.
type ClonedMessage struct {
	ReplyReference *MessageRef
	Content        string
	Attachments    []DownloadedAttachment
	Stickers       []StickerRef
}

// StickerIDs returns the ids of the cloned stickers in order.
func (c ClonedMessage) StickerIDs() []ID {
	ids := make([]ID, 0, len(c.Stickers))
	for _, s := range c.Stickers {
		ids = append(ids, s.ID)
	}
	return ids
}
