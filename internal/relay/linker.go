package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"relaybot/internal/domain"
	"relaybot/internal/platform"
	"relaybot/internal/storage"
)

// Linker records links as bot replies in the source channel and resolves
// them again by scanning that channel's history. An optional index short-cuts
// the scan; its entries are only trusted while the link message is still in
// chat.
type Linker struct {
	client    platform.Client
	index     storage.LinkRepository
	scanLimit int
	log       logrus.FieldLogger
}

// NewLinker creates a Linker. index may be nil; scanLimit 0 means unbounded.
func NewLinker(client platform.Client, index storage.LinkRepository, scanLimit int, logger logrus.FieldLogger) *Linker {
	return &Linker{
		client:    client,
		index:     index,
		scanLimit: scanLimit,
		log:       logger.WithField("component", "linker"),
	}
}

// RecordLink replies to source with "{destinationID}:{sourceID}" and returns
// the recorded link.
func (l *Linker) RecordLink(ctx context.Context, source domain.Message, destinationChannelID, destinationID domain.ID) (domain.Link, error) {
	link := domain.Link{
		DestinationMessageID: destinationID,
		SourceMessageID:      source.ID,
		SourceChannelID:      source.ChannelID,
		DestinationChannelID: destinationChannelID,
		Timestamp:            time.Now(),
	}

	reply, err := l.client.SendMessage(ctx, source.ChannelID, platform.OutgoingMessage{
		Content: link.Encode(),
		Reference: &domain.MessageRef{
			MessageID: source.ID,
			ChannelID: source.ChannelID,
			GuildID:   source.GuildID,
		},
	})
	if err != nil {
		return domain.Link{}, fmt.Errorf("failed to record link: %w", err)
	}
	link.LinkMessageID = reply.ID

	if l.index != nil {
		if err := l.index.SaveLink(ctx, link); err != nil {
			l.log.WithError(err).WithField("source_id", source.ID).Warn("Failed to index link")
		}
	}
	return link, nil
}

// ResolveByDestinationAnchor finds the link recorded by a bot reply to
// anchorID. found is false when the message was never linked.
// DestinationChannelID is zero unless the link came from the index.
func (l *Linker) ResolveByDestinationAnchor(ctx context.Context, sourceChannelID, anchorID domain.ID) (domain.Link, bool, error) {
	indexed, inIndex := l.lookupIndex(ctx, sourceChannelID, anchorID)
	if inIndex && l.confirm(ctx, sourceChannelID, indexed) {
		return indexed, true, nil
	}

	var found domain.Link
	ok, err := l.scan(ctx, sourceChannelID, anchorID, func(msg domain.Message) bool {
		if !msg.IsReplyTo(anchorID) {
			return false
		}
		link, err := domain.ParseLink(msg.Content)
		if err != nil {
			return false
		}
		link.LinkMessageID = msg.ID
		link.SourceChannelID = sourceChannelID
		found = link
		return true
	})
	if err == nil && !ok && inIndex {
		l.Forget(ctx, anchorID)
	}
	return found, ok, err
}

// ResolveByDeletedSource finds the link whose encoded source id equals
// deletedID. It returns the full link including the link message id.
func (l *Linker) ResolveByDeletedSource(ctx context.Context, sourceChannelID, deletedID domain.ID) (domain.Link, bool, error) {
	indexed, inIndex := l.lookupIndex(ctx, sourceChannelID, deletedID)
	if inIndex && l.confirm(ctx, sourceChannelID, indexed) {
		return indexed, true, nil
	}

	var found domain.Link
	ok, err := l.scan(ctx, sourceChannelID, deletedID, func(msg domain.Message) bool {
		link, err := domain.ParseLink(msg.Content)
		if err != nil || link.SourceMessageID != deletedID {
			return false
		}
		link.LinkMessageID = msg.ID
		link.SourceChannelID = sourceChannelID
		found = link
		return true
	})
	if err == nil && !ok && inIndex {
		l.Forget(ctx, deletedID)
	}
	return found, ok, err
}

// Forget drops the indexed link for sourceID. The link message in chat is left in place.
func (l *Linker) Forget(ctx context.Context, sourceID domain.ID) {
	if l.index == nil {
		return
	}
	if err := l.index.DeleteLink(ctx, sourceID); err != nil {
		l.log.WithError(err).WithField("source_id", sourceID).Warn("Failed to remove link from index")
	}
}

func (l *Linker) lookupIndex(ctx context.Context, sourceChannelID, sourceID domain.ID) (domain.Link, bool) {
	if l.index == nil {
		return domain.Link{}, false
	}
	link, found, err := l.index.GetLinkBySource(ctx, sourceID)
	if err != nil {
		l.log.WithError(err).WithField("source_id", sourceID).Warn("Link index lookup failed")
		return domain.Link{}, false
	}
	if !found || link.SourceChannelID != sourceChannelID {
		return domain.Link{}, false
	}
	return link, true
}

// confirm checks that the link message behind an index entry still exists
// in chat and still encodes the same pair. Chat wins over the index.
func (l *Linker) confirm(ctx context.Context, sourceChannelID domain.ID, link domain.Link) bool {
	log := l.log.WithFields(logrus.Fields{
		"source_id":       link.SourceMessageID,
		"link_message_id": link.LinkMessageID,
	})
	msg, err := l.client.FetchMessage(ctx, sourceChannelID, link.LinkMessageID)
	if err != nil {
		log.WithError(err).Debug("Indexed link message unavailable, scanning history")
		return false
	}
	inChat, err := domain.ParseLink(msg.Content)
	if err != nil || msg.AuthorID != l.client.BotID() ||
		inChat.SourceMessageID != link.SourceMessageID ||
		inChat.DestinationMessageID != link.DestinationMessageID {
		log.Debug("Indexed link does not match chat, scanning history")
		return false
	}
	return true
}

// scan walks bot-authored messages in channelID most-recent-first until match
// returns true, the history ends, or the scan limit is reached. Ids are
// time-ordered and a link reply is always newer than its source, so the scan
// stops at the first message older than floor.
func (l *Linker) scan(ctx context.Context, channelID, floor domain.ID, match func(domain.Message) bool) (bool, error) {
	botID := l.client.BotID()
	scanned := 0
	for msg, err := range l.client.History(ctx, channelID) {
		if err != nil {
			return false, fmt.Errorf("failed to read history of channel %d: %w", uint64(channelID), err)
		}
		if msg.ID < floor {
			return false, nil
		}
		scanned++
		if msg.AuthorID == botID && match(msg) {
			return true, nil
		}
		if l.scanLimit > 0 && scanned >= l.scanLimit {
			l.log.WithFields(logrus.Fields{
				"channel_id": channelID,
				"scanned":    scanned,
			}).Debug("History scan limit reached")
			return false, nil
		}
	}
	return false, nil
}
