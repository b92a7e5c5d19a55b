package discord

import (
	"github.com/bwmarrin/discordgo"

	"relaybot/internal/domain"
	"relaybot/internal/platform"
)

// parseID converts a snowflake string; malformed or empty ids become 0.
func parseID(s string) domain.ID {
	id, err := domain.ParseID(s)
	if err != nil {
		return 0
	}
	return id
}

// MessageFrom converts a discordgo message into the platform-agnostic form.
func MessageFrom(m *discordgo.Message) domain.Message {
	msg := domain.Message{
		ID:        parseID(m.ID),
		ChannelID: parseID(m.ChannelID),
		GuildID:   parseID(m.GuildID),
		Content:   m.Content,
	}
	if m.Author != nil {
		msg.AuthorID = parseID(m.Author.ID)
	}
	if ref := m.MessageReference; ref != nil {
		msg.Reference = &domain.MessageRef{
			MessageID: parseID(ref.MessageID),
			ChannelID: parseID(ref.ChannelID),
			GuildID:   parseID(ref.GuildID),
		}
	}
	for _, a := range m.Attachments {
		msg.Attachments = append(msg.Attachments, domain.Attachment{
			ID:       parseID(a.ID),
			Filename: a.Filename,
			URL:      a.URL,
			Size:     uint32(a.Size),
		})
	}
	for _, s := range m.StickerItems {
		msg.Stickers = append(msg.Stickers, domain.StickerRef{ID: parseID(s.ID), Name: s.Name})
	}
	return msg
}

// ReactionEventFrom converts a reaction-add gateway event.
func ReactionEventFrom(r *discordgo.MessageReactionAdd) platform.ReactionEvent {
	return platform.ReactionEvent{
		GuildID:   parseID(r.GuildID),
		ChannelID: parseID(r.ChannelID),
		MessageID: parseID(r.MessageID),
		UserID:    parseID(r.UserID),
		Emoji:     r.Emoji.APIName(),
	}
}

// MessageEventFrom converts the message carried by an update or delete event.
func MessageEventFrom(m *discordgo.Message) platform.MessageEvent {
	return platform.MessageEvent{
		GuildID:   parseID(m.GuildID),
		ChannelID: parseID(m.ChannelID),
		MessageID: parseID(m.ID),
	}
}
