package discord

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"relaybot/internal/domain"
	"relaybot/internal/platform"
)

// historyPageSize is the largest page Discord returns for channel history.
const historyPageSize = 100

// Intents needed to see reactions, edits, deletions and message content.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentMessageContent

// Client implements platform.Client and platform.ChannelDirectory over a
// discordgo session.
type Client struct {
	session *discordgo.Session
	http    *http.Client
	botID   domain.ID
	log     logrus.FieldLogger
}

var (
	_ platform.Client           = (*Client)(nil)
	_ platform.ChannelDirectory = (*Client)(nil)
)

// New creates a client for the bot token. It does not connect.
func New(token string, logger logrus.FieldLogger) (*Client, error) {
	log := logger.WithField("component", "discord")

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		log.WithError(err).Error("Failed to create Discord session")
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.Identify.Intents = Intents

	return &Client{
		session: s,
		http:    &http.Client{Timeout: 2 * time.Minute},
		log:     log,
	}, nil
}

// Open connects to the gateway and learns the bot's own user id.
func (c *Client) Open(ctx context.Context) error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}
	me, err := c.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to fetch bot user: %w", err)
	}
	c.botID = parseID(me.ID)
	c.log.WithFields(logrus.Fields{"bot_id": c.botID, "username": me.Username}).Info("Connected to Discord")
	return nil
}

// Close disconnects from the gateway.
func (c *Client) Close() error {
	return c.session.Close()
}

// AddHandler registers a discordgo event handler and returns its remover.
func (c *Client) AddHandler(handler interface{}) func() {
	return c.session.AddHandler(handler)
}

// BotID is the bot's own user id, known once Open succeeded.
func (c *Client) BotID() domain.ID { return c.botID }

// FetchMessage reads a single message over REST.
func (c *Client) FetchMessage(ctx context.Context, channelID, messageID domain.ID) (domain.Message, error) {
	m, err := c.session.ChannelMessage(channelID.String(), messageID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return domain.Message{}, err
	}
	return MessageFrom(m), nil
}

// History pages backwards through channelID, most recent first, fetching
// the next page only when the caller keeps iterating.
func (c *Client) History(ctx context.Context, channelID domain.ID) iter.Seq2[domain.Message, error] {
	return func(yield func(domain.Message, error) bool) {
		before := ""
		for {
			page, err := c.session.ChannelMessages(channelID.String(), historyPageSize, before, "", "", discordgo.WithContext(ctx))
			if err != nil {
				yield(domain.Message{}, err)
				return
			}
			for _, m := range page {
				if !yield(MessageFrom(m), nil) {
					return
				}
			}
			if len(page) < historyPageSize {
				return
			}
			before = page[len(page)-1].ID
		}
	}
}

// SendMessage posts out to channelID, uploading its attachments.
func (c *Client) SendMessage(ctx context.Context, channelID domain.ID, out platform.OutgoingMessage) (domain.Message, error) {
	data := &discordgo.MessageSend{
		Content: out.Content,
		Files:   toFiles(out.Attachments),
	}
	if out.Reference != nil {
		data.Reference = toReference(*out.Reference)
	}
	for _, id := range out.StickerIDs {
		data.StickerIDs = append(data.StickerIDs, id.String())
	}

	m, err := c.session.ChannelMessageSendComplex(channelID.String(), data, discordgo.WithContext(ctx))
	if err != nil {
		return domain.Message{}, err
	}
	return MessageFrom(m), nil
}

// EditMessage replaces content and drops every existing attachment in favour
// of edit.Attachments.
func (c *Client) EditMessage(ctx context.Context, channelID, messageID domain.ID, edit platform.MessageEdit) error {
	content := edit.Content
	keep := []*discordgo.MessageAttachment{}
	_, err := c.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		ID:          messageID.String(),
		Channel:     channelID.String(),
		Content:     &content,
		Files:       toFiles(edit.Attachments),
		Attachments: &keep,
	}, discordgo.WithContext(ctx))
	return err
}

// DeleteMessage deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID domain.ID) error {
	return c.session.ChannelMessageDelete(channelID.String(), messageID.String(), discordgo.WithContext(ctx))
}

// DownloadAttachment fetches the attachment bytes from the CDN.
func (c *Client) DownloadAttachment(ctx context.Context, attachment domain.Attachment) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", attachment.Filename, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: unexpected status %s", attachment.Filename, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", attachment.Filename, err)
	}
	return data, nil
}

// SupportsBroadcast reports whether channelID is an announcement channel.
func (c *Client) SupportsBroadcast(ctx context.Context, channelID domain.ID) (bool, error) {
	ch, err := c.session.State.Channel(channelID.String())
	if err != nil {
		ch, err = c.session.Channel(channelID.String(), discordgo.WithContext(ctx))
		if err != nil {
			return false, err
		}
	}
	return ch.Type == discordgo.ChannelTypeGuildNews, nil
}

// PromoteMessage crossposts a message to channels following channelID.
func (c *Client) PromoteMessage(ctx context.Context, channelID, messageID domain.ID) error {
	_, err := c.session.ChannelMessageCrosspost(channelID.String(), messageID.String(), discordgo.WithContext(ctx))
	return err
}

// FindChannel looks up a guild channel by name under parentID.
func (c *Client) FindChannel(ctx context.Context, guildID domain.ID, name string, parentID domain.ID) (domain.ID, bool, error) {
	channels, err := c.session.GuildChannels(guildID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return 0, false, err
	}
	for _, ch := range channels {
		if ch.Name == name && ch.ParentID == parentID.String() {
			return parseID(ch.ID), true, nil
		}
	}
	return 0, false, nil
}

// CreateBroadcastChannel creates an announcement channel under parentID.
func (c *Client) CreateBroadcastChannel(ctx context.Context, guildID domain.ID, name string, parentID domain.ID) (domain.ID, error) {
	ch, err := c.session.GuildChannelCreateComplex(guildID.String(), discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildNews,
		ParentID: parentID.String(),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return 0, err
	}
	c.log.WithFields(logrus.Fields{"channel_id": ch.ID, "name": name}).Info("Created destination channel")
	return parseID(ch.ID), nil
}

func toFiles(attachments []domain.DownloadedAttachment) []*discordgo.File {
	files := make([]*discordgo.File, 0, len(attachments))
	for _, a := range attachments {
		files = append(files, &discordgo.File{
			Name:   a.Filename,
			Reader: bytes.NewReader(a.Data),
		})
	}
	return files
}

func toReference(ref domain.MessageRef) *discordgo.MessageReference {
	out := &discordgo.MessageReference{
		MessageID: ref.MessageID.String(),
		ChannelID: ref.ChannelID.String(),
	}
	if !ref.GuildID.IsZero() {
		out.GuildID = ref.GuildID.String()
	}
	return out
}
