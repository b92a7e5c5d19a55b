package relay

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"relaybot/internal/alert"
	"relaybot/internal/domain"
	"relaybot/internal/events"
	"relaybot/internal/platform"
)

// ApprovalFailedReply is sent to the approving user when relaying fails.
const ApprovalFailedReply = "Failed to relay this message, please try again later."

// NotBroadcastReply is sent when the copy exists but could not be pushed to
// following channels. Approving again will not retry.
const NotBroadcastReply = "Relayed this message, but it could not be broadcast to following channels."

// Options configures which events the Dispatcher acts on.
type Options struct {
	SourceChannelID domain.ID
	ApprovalEmoji   string
}

// Deps are the collaborators of a Dispatcher.
type Deps struct {
	Client    platform.Client
	Pointer   *DestinationPointer
	Cloner    *Cloner
	Publisher *Publisher
	Linker    *Linker
	Events    events.Publisher
	Alerts    alert.Notifier
}

// Dispatcher reacts to approvals, edits and deletions in the source channel
// and keeps the relayed copies in sync. Work on the same source message is
// serialized; different messages are handled concurrently.
type Dispatcher struct {
	Deps
	opts  Options
	locks *keyLock
	log   logrus.FieldLogger
}

// NewDispatcher creates a Dispatcher. Nil Events or Alerts are replaced by no-ops.
func NewDispatcher(opts Options, deps Deps, logger logrus.FieldLogger) *Dispatcher {
	log := logger.WithField("component", "dispatcher")
	if deps.Events == nil {
		deps.Events = events.NewFallback(log)
	}
	if deps.Alerts == nil {
		deps.Alerts = alert.Nop{}
	}
	return &Dispatcher{
		Deps:  deps,
		opts:  opts,
		locks: newKeyLock(),
		log:   log,
	}
}

// HandleReactionAdd relays a message when its author approves it with the
// approval emoji. Any other reaction is ignored.
func (d *Dispatcher) HandleReactionAdd(ctx context.Context, ev platform.ReactionEvent) error {
	log := d.log.WithFields(logrus.Fields{
		"channel_id": ev.ChannelID,
		"message_id": ev.MessageID,
		"user_id":    ev.UserID,
	})
	if ev.ChannelID != d.opts.SourceChannelID || ev.Emoji != d.opts.ApprovalEmoji || ev.UserID == d.Client.BotID() {
		return nil
	}

	unlock := d.locks.Lock(ev.MessageID)
	defer unlock()

	msg, err := d.Client.FetchMessage(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		return d.approvalFailed(ctx, log, ev, fmt.Errorf("failed to fetch message: %w", err))
	}
	if msg.AuthorID != ev.UserID {
		log.WithField("author_id", msg.AuthorID).Debug("Ignoring approval from someone other than the author")
		return nil
	}

	if _, found, err := d.Linker.ResolveByDestinationAnchor(ctx, ev.ChannelID, msg.ID); err != nil {
		return d.approvalFailed(ctx, log, ev, err)
	} else if found {
		log.Info("Message already relayed, ignoring repeated approval")
		return nil
	}

	destChannel := d.Pointer.Get()
	cloned := d.Cloner.Clone(ctx, msg)

	sent, pubErr := d.Publisher.Publish(ctx, destChannel, cloned)
	if sent.ID.IsZero() {
		return d.approvalFailed(ctx, log, ev, pubErr)
	}
	log = log.WithField("destination_id", sent.ID)

	// The copy exists even if promoting it failed, so it is linked regardless.
	link, err := d.Linker.RecordLink(ctx, msg, destChannel, sent.ID)
	if err != nil {
		return d.approvalFailed(ctx, log, ev, err)
	}
	d.emit(ctx, events.TypeApproved, link)
	if pubErr != nil {
		log.WithError(pubErr).Error("Relayed message was not broadcast")
		d.replyTo(ctx, log, ev, NotBroadcastReply)
		return pubErr
	}

	log.Info("Message relayed")
	return nil
}

// HandleMessageUpdate re-syncs the relayed copy of an edited source message.
// Edits to messages that were never relayed are ignored.
func (d *Dispatcher) HandleMessageUpdate(ctx context.Context, ev platform.MessageEvent) error {
	if ev.ChannelID != d.opts.SourceChannelID {
		return nil
	}
	log := d.log.WithFields(logrus.Fields{
		"channel_id": ev.ChannelID,
		"message_id": ev.MessageID,
	})

	unlock := d.locks.Lock(ev.MessageID)
	defer unlock()

	// The update payload may be partial; work from the current message.
	msg, err := d.Client.FetchMessage(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		return d.syncFailed(ctx, log, "edit", ev, fmt.Errorf("failed to fetch edited message: %w", err))
	}
	if msg.AuthorID == d.Client.BotID() {
		return nil
	}

	link, found, err := d.Linker.ResolveByDestinationAnchor(ctx, ev.ChannelID, msg.ID)
	if err != nil {
		return d.syncFailed(ctx, log, "edit", ev, err)
	}
	if !found {
		log.Debug("Edited message was never relayed")
		return nil
	}
	dest := link.DestinationMessageID
	log = log.WithField("destination_id", dest)

	cloned := d.Cloner.Clone(ctx, msg)
	if cloned.ReplyReference != nil {
		log.Debug("Relayed copy is a bare reference, nothing to edit")
		return nil
	}

	destChannel := d.destinationOf(link)
	err = d.Client.EditMessage(ctx, destChannel, dest, platform.MessageEdit{
		Content:     cloned.Content,
		Attachments: cloned.Attachments,
	})
	if err != nil {
		return d.syncFailed(ctx, log, "edit", ev, fmt.Errorf("failed to edit message: %w", err))
	}

	log.Info("Relayed message updated")
	d.emit(ctx, events.TypeEdited, domain.Link{
		DestinationMessageID: dest,
		SourceMessageID:      msg.ID,
		SourceChannelID:      ev.ChannelID,
		DestinationChannelID: destChannel,
	})
	return nil
}

// HandleMessageDelete deletes the relayed copy of a deleted source message.
// The link message itself is left in the source channel.
func (d *Dispatcher) HandleMessageDelete(ctx context.Context, ev platform.MessageEvent) error {
	if ev.ChannelID != d.opts.SourceChannelID {
		return nil
	}
	log := d.log.WithFields(logrus.Fields{
		"channel_id": ev.ChannelID,
		"message_id": ev.MessageID,
	})

	unlock := d.locks.Lock(ev.MessageID)
	defer unlock()

	link, found, err := d.Linker.ResolveByDeletedSource(ctx, ev.ChannelID, ev.MessageID)
	if err != nil {
		return d.syncFailed(ctx, log, "delete", ev, err)
	}
	if !found {
		log.Debug("Deleted message was never relayed")
		return nil
	}
	log = log.WithField("destination_id", link.DestinationMessageID)

	destChannel := d.destinationOf(link)
	if err := d.Client.DeleteMessage(ctx, destChannel, link.DestinationMessageID); err != nil {
		return d.syncFailed(ctx, log, "delete", ev, fmt.Errorf("failed to delete message: %w", err))
	}
	d.Linker.Forget(ctx, link.SourceMessageID)

	log.Info("Relayed message deleted")
	link.DestinationChannelID = destChannel
	d.emit(ctx, events.TypeDeleted, link)
	return nil
}

// SendToChannel sends content and attachments to an arbitrary channel,
// materializing the attachments under the same budget as relayed messages.
func (d *Dispatcher) SendToChannel(ctx context.Context, channelID domain.ID, content string, attachments []domain.Attachment) (domain.Message, error) {
	cloned := d.Cloner.Clone(ctx, domain.Message{Content: content, Attachments: attachments})
	sent, err := d.Client.SendMessage(ctx, channelID, OutgoingFromClone(cloned))
	if err != nil {
		return domain.Message{}, fmt.Errorf("failed to send message to %d: %w", uint64(channelID), err)
	}
	return sent, nil
}

// destinationOf is the channel holding the copy: the one recorded with the
// link when known, otherwise the current destination.
func (d *Dispatcher) destinationOf(link domain.Link) domain.ID {
	if !link.DestinationChannelID.IsZero() {
		return link.DestinationChannelID
	}
	return d.Pointer.Get()
}

func (d *Dispatcher) approvalFailed(ctx context.Context, log logrus.FieldLogger, ev platform.ReactionEvent, err error) error {
	log.WithError(err).Error("Failed to relay approved message")
	d.replyTo(ctx, log, ev, ApprovalFailedReply)
	return err
}

func (d *Dispatcher) replyTo(ctx context.Context, log logrus.FieldLogger, ev platform.ReactionEvent, text string) {
	_, err := d.Client.SendMessage(ctx, ev.ChannelID, platform.OutgoingMessage{
		Content: text,
		Reference: &domain.MessageRef{
			MessageID: ev.MessageID,
			ChannelID: ev.ChannelID,
			GuildID:   ev.GuildID,
		},
	})
	if err != nil {
		log.WithError(err).Warn("Failed to report relay outcome to the author")
	}
}

func (d *Dispatcher) syncFailed(ctx context.Context, log logrus.FieldLogger, op string, ev platform.MessageEvent, err error) error {
	log.WithError(err).Errorf("Failed to sync %s", op)
	text := fmt.Sprintf("Relay %s sync failed for message %d in channel %d: %v", op, uint64(ev.MessageID), uint64(ev.ChannelID), err)
	if alertErr := d.Alerts.Notify(ctx, text); alertErr != nil {
		log.WithError(alertErr).Warn("Failed to send operator alert")
	}
	return err
}

func (d *Dispatcher) emit(ctx context.Context, eventType string, link domain.Link) {
	data := events.RelayEvent{
		SourceChannelID:      link.SourceChannelID.String(),
		SourceMessageID:      link.SourceMessageID.String(),
		DestinationChannelID: link.DestinationChannelID.String(),
		DestinationMessageID: link.DestinationMessageID.String(),
	}
	if !link.LinkMessageID.IsZero() {
		data.LinkMessageID = link.LinkMessageID.String()
	}
	if err := d.Events.Publish(ctx, eventType, events.NewEnvelope(eventType, data)); err != nil {
		d.log.WithError(err).WithField("event_type", eventType).Warn("Failed to publish relay event")
	}
}
