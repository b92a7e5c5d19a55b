package bot

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"relaybot/internal/domain"
	"relaybot/internal/platform"
	"relaybot/internal/relay"
)

const commandPrefix = "!"

const (
	cmdRefreshChannel = "refresh_channel"
	cmdSendToChannel  = "send_to_channel"
)

// parseCommand splits "!name rest..." into name and the untouched rest.
func parseCommand(content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, commandPrefix) {
		return "", "", false
	}
	name, args, _ = strings.Cut(content[len(commandPrefix):], " ")
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(args), true
}

// parseChannelArg accepts a raw id or a <#id> mention.
func parseChannelArg(arg string) (domain.ID, error) {
	arg = strings.TrimSuffix(strings.TrimPrefix(arg, "<#"), ">")
	return domain.ParseID(arg)
}

// handleCommand runs an admin command. Non-commands and callers without
// admin rights are ignored.
func (h *Handler) handleCommand(ctx context.Context, msg domain.Message) {
	name, args, ok := parseCommand(msg.Content)
	if !ok {
		return
	}
	log := h.log.WithFields(logrus.Fields{
		"user_id": msg.AuthorID,
		"command": name,
	})
	if !h.inGuild(msg.GuildID) || !h.cfg.IsAdmin(uint64(msg.AuthorID)) {
		log.Debug("Ignoring command from non-admin")
		return
	}

	log.Info("Executing command")
	switch name {
	case cmdRefreshChannel:
		h.refreshChannel(ctx, log, msg)
	case cmdSendToChannel:
		h.sendToChannel(ctx, log, msg, args)
	default:
		log.Debug("Unknown command")
	}
}

func (h *Handler) refreshChannel(ctx context.Context, log logrus.FieldLogger, msg domain.Message) {
	if _, err := relay.RefreshDestination(ctx, h.transport, h.target, h.pointer, h.log); err != nil {
		log.WithError(err).Error("Failed to refresh destination channel")
		h.reply(ctx, log, msg, "Failed to refresh the channel.")
		return
	}
	h.reply(ctx, log, msg, "Successfully refreshed!")
}

func (h *Handler) sendToChannel(ctx context.Context, log logrus.FieldLogger, msg domain.Message, args string) {
	channelArg, content, _ := strings.Cut(args, " ")
	channelID, err := parseChannelArg(channelArg)
	if err != nil {
		h.reply(ctx, log, msg, "Usage: !send_to_channel <channel> <content>")
		return
	}
	if _, err := h.dispatcher.SendToChannel(ctx, channelID, strings.TrimSpace(content), msg.Attachments); err != nil {
		log.WithError(err).Error("Failed to send to channel")
		h.reply(ctx, log, msg, "Failed to send the message.")
		return
	}
	h.reply(ctx, log, msg, "Successfully sent!")
}

func (h *Handler) reply(ctx context.Context, log logrus.FieldLogger, msg domain.Message, text string) {
	_, err := h.transport.SendMessage(ctx, msg.ChannelID, platform.OutgoingMessage{
		Content: text,
		Reference: &domain.MessageRef{
			MessageID: msg.ID,
			ChannelID: msg.ChannelID,
			GuildID:   msg.GuildID,
		},
	})
	if err != nil {
		log.WithError(err).Error("Failed to send command reply")
	}
}
