package relay

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"relaybot/internal/domain"
	"relaybot/internal/platform"
)

// Publisher sends cloned messages to the destination channel.
type Publisher struct {
	client platform.Client
	log    logrus.FieldLogger
}

// NewPublisher creates a Publisher.
func NewPublisher(client platform.Client, logger logrus.FieldLogger) *Publisher {
	return &Publisher{client: client, log: logger.WithField("component", "publisher")}
}

// Publish sends cloned to channelID and promotes it when the channel supports
// broadcasting. Platform errors are returned as is; nothing is retried.
func (p *Publisher) Publish(ctx context.Context, channelID domain.ID, cloned domain.ClonedMessage) (domain.Message, error) {
	sent, err := p.client.SendMessage(ctx, channelID, OutgoingFromClone(cloned))
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to send message to %d: %w", uint64(channelID), err)
	}

	broadcast, err := p.client.SupportsBroadcast(ctx, channelID)
	if err != nil {
		return sent, fmt.Errorf("failed to inspect channel %d: %w", uint64(channelID), err)
	}
	if broadcast {
		if err := p.client.PromoteMessage(ctx, channelID, sent.ID); err != nil {
			return sent, fmt.Errorf("failed to promote message %d: %w", uint64(sent.ID), err)
		}
	}

	p.log.WithFields(logrus.Fields{
		"channel_id":     channelID,
		"destination_id": sent.ID,
		"promoted":       broadcast,
	}).Debug("Published message")
	return sent, nil
}

// OutgoingFromClone converts a ClonedMessage into a send request, honouring
// the reply short-circuit.
func OutgoingFromClone(cloned domain.ClonedMessage) platform.OutgoingMessage {
	if cloned.ReplyReference != nil {
		return platform.OutgoingMessage{Reference: cloned.ReplyReference}
	}
	return platform.OutgoingMessage{
		Content:     cloned.Content,
		Attachments: cloned.Attachments,
		StickerIDs:  cloned.StickerIDs(),
	}
}
