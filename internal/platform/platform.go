package platform

import (
	"context"
	"iter"

	"relaybot/internal/domain"
)

// OutgoingMessage is everything needed to create a message.
type OutgoingMessage struct {
	Content     string
	Attachments []domain.DownloadedAttachment
	Reference   *domain.MessageRef
	StickerIDs  []domain.ID
}

// MessageEdit replaces the content and the full attachment set of a message.
type MessageEdit struct {
	Content     string
	Attachments []domain.DownloadedAttachment
}

// Client is the chat platform surface the relay depends on.
type Client interface {
	// BotID returns the id of the account this client acts as.
	BotID() domain.ID

	FetchMessage(ctx context.Context, channelID, messageID domain.ID) (domain.Message, error)

	// History yields the channel's messages most-recent-first, paginating
	// internally. Each call starts a fresh scan.
	History(ctx context.Context, channelID domain.ID) iter.Seq2[domain.Message, error]

	SendMessage(ctx context.Context, channelID domain.ID, msg OutgoingMessage) (domain.Message, error)
	EditMessage(ctx context.Context, channelID, messageID domain.ID, edit MessageEdit) error
	DeleteMessage(ctx context.Context, channelID, messageID domain.ID) error
	DownloadAttachment(ctx context.Context, attachment domain.Attachment) ([]byte, error)

	// SupportsBroadcast reports whether messages in the channel can be promoted.
	SupportsBroadcast(ctx context.Context, channelID domain.ID) (bool, error)
	PromoteMessage(ctx context.Context, channelID, messageID domain.ID) error
}

// ChannelDirectory looks up and creates channels within a guild.
type ChannelDirectory interface {
	FindChannel(ctx context.Context, guildID domain.ID, name string, parentID domain.ID) (domain.ID, bool, error)
	CreateBroadcastChannel(ctx context.Context, guildID domain.ID, name string, parentID domain.ID) (domain.ID, error)
}

// ReactionEvent is delivered when a reaction is added to a message.
type ReactionEvent struct {
	GuildID   domain.ID
	ChannelID domain.ID
	MessageID domain.ID
	UserID    domain.ID
	Emoji     string
}

// MessageEvent is delivered when a message is edited or deleted.
type MessageEvent struct {
	GuildID   domain.ID
	ChannelID domain.ID
	MessageID domain.ID
}
