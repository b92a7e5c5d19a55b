package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"relaybot/internal/config"
	"relaybot/internal/domain"
	"relaybot/internal/platform"
	"relaybot/internal/platform/discord"
	"relaybot/internal/relay"
)

// Transport is the connected chat platform as seen by the handler.
type Transport interface {
	platform.Client
	platform.ChannelDirectory
	AddHandler(handler interface{}) func()
	Open(ctx context.Context) error
	Close() error
}

// Handler routes gateway events to the relay and runs admin commands.
type Handler struct {
	transport  Transport
	cfg        config.Config
	dispatcher *relay.Dispatcher
	pointer    *relay.DestinationPointer
	target     relay.DestinationTarget
	log        logrus.FieldLogger

	ctx context.Context
}

// NewHandler creates a new bot handler instance and registers its event handlers.
func NewHandler(cfg config.Config, transport Transport, dispatcher *relay.Dispatcher, pointer *relay.DestinationPointer, logger logrus.FieldLogger) *Handler {
	h := &Handler{
		transport:  transport,
		cfg:        cfg,
		dispatcher: dispatcher,
		pointer:    pointer,
		target:     Target(cfg),
		log:        logger.WithField("component", "bot_handler"),
		ctx:        context.Background(),
	}
	h.registerHandlers()
	h.log.Info("Discord bot handler initialized")
	return h
}

// Target is the destination channel named by cfg.
func Target(cfg config.Config) relay.DestinationTarget {
	return relay.DestinationTarget{
		GuildID:    domain.ID(cfg.GuildID),
		Name:       cfg.DestinationChannelName,
		CategoryID: domain.ID(cfg.DestinationCategoryID),
	}
}

func (h *Handler) registerHandlers() {
	h.transport.AddHandler(h.onReactionAdd)
	h.transport.AddHandler(h.onMessageUpdate)
	h.transport.AddHandler(h.onMessageDelete)
	h.transport.AddHandler(h.onMessageCreate)
}

// Start connects to the gateway and blocks until ctx is cancelled.
func (h *Handler) Start(ctx context.Context) error {
	h.ctx = ctx
	h.log.Info("Connecting to Discord gateway...")
	if err := h.transport.Open(ctx); err != nil {
		h.log.WithError(err).Error("Failed to connect")
		return fmt.Errorf("failed to start bot: %w", err)
	}
	<-ctx.Done()
	h.log.Info("Disconnecting from Discord gateway...")
	return h.transport.Close()
}

func (h *Handler) inGuild(guildID domain.ID) bool {
	return guildID == domain.ID(h.cfg.GuildID)
}

func (h *Handler) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	ev := discord.ReactionEventFrom(r)
	if !h.inGuild(ev.GuildID) {
		return
	}
	if err := h.dispatcher.HandleReactionAdd(h.ctx, ev); err != nil {
		h.log.WithError(err).Debug("Reaction handling ended with error")
	}
}

func (h *Handler) onMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Message == nil {
		return
	}
	ev := discord.MessageEventFrom(m.Message)
	if !h.inGuild(ev.GuildID) {
		return
	}
	if err := h.dispatcher.HandleMessageUpdate(h.ctx, ev); err != nil {
		h.log.WithError(err).Debug("Edit handling ended with error")
	}
}

func (h *Handler) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	if m.Message == nil {
		return
	}
	ev := discord.MessageEventFrom(m.Message)
	if !h.inGuild(ev.GuildID) {
		return
	}
	if err := h.dispatcher.HandleMessageDelete(h.ctx, ev); err != nil {
		h.log.WithError(err).Debug("Delete handling ended with error")
	}
}

func (h *Handler) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	h.handleCommand(h.ctx, discord.MessageFrom(m.Message))
}
