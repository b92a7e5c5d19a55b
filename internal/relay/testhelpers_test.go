package relay

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"relaybot/internal/domain"
	"relaybot/internal/events"
	"relaybot/internal/platform"
)

const (
	testBotID       domain.ID = 1
	testSourceChan  domain.ID = 100
	testDestChan    domain.ID = 200
	testAuthorID    domain.ID = 10
	testOtherUserID domain.ID = 11
	testEmoji                 = "✅"
)

var errUnknownMessage = errors.New("unknown message")

type sentRecord struct {
	ChannelID domain.ID
	MessageID domain.ID
	Msg       platform.OutgoingMessage
}

type editRecord struct {
	ChannelID domain.ID
	MessageID domain.ID
	Edit      platform.MessageEdit
}

type targetRecord struct {
	ChannelID domain.ID
	MessageID domain.ID
}

// fakeClient is an in-memory platform.Client.
type fakeClient struct {
	mu       sync.Mutex
	nextID   domain.ID
	channels map[domain.ID][]domain.Message // oldest first

	broadcast   map[domain.ID]bool
	downloads   map[string][]byte
	downloadErr map[string]error

	sendErr    map[domain.ID]error
	editErr    error
	deleteErr  error
	promoteErr error
	historyErr error

	downloadCalls []string
	historyReads  int
	sends         []sentRecord
	edits         []editRecord
	deletes       []targetRecord
	promotions    []targetRecord
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		nextID:      1000,
		channels:    make(map[domain.ID][]domain.Message),
		broadcast:   make(map[domain.ID]bool),
		downloads:   make(map[string][]byte),
		downloadErr: make(map[string]error),
		sendErr:     make(map[domain.ID]error),
	}
}

// post adds a user message to a channel and returns it.
func (f *fakeClient) post(channelID, authorID domain.ID, content string, attachments ...domain.Attachment) domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := domain.Message{
		ID:          f.nextID,
		ChannelID:   channelID,
		AuthorID:    authorID,
		Content:     content,
		Attachments: attachments,
	}
	f.channels[channelID] = append(f.channels[channelID], msg)
	return msg
}

// update replaces a stored message in place.
func (f *fakeClient) update(msg domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, m := range f.channels[msg.ChannelID] {
		if m.ID == msg.ID {
			f.channels[msg.ChannelID][i] = msg
		}
	}
}

func (f *fakeClient) remove(channelID, messageID domain.ID) bool {
	msgs := f.channels[channelID]
	for i, m := range msgs {
		if m.ID == messageID {
			f.channels[channelID] = slices.Delete(msgs, i, i+1)
			return true
		}
	}
	return false
}

func (f *fakeClient) BotID() domain.ID { return testBotID }

func (f *fakeClient) FetchMessage(ctx context.Context, channelID, messageID domain.ID) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.channels[channelID] {
		if m.ID == messageID {
			return m, nil
		}
	}
	return domain.Message{}, errUnknownMessage
}

func (f *fakeClient) History(ctx context.Context, channelID domain.ID) iter.Seq2[domain.Message, error] {
	f.mu.Lock()
	snapshot := slices.Clone(f.channels[channelID])
	historyErr := f.historyErr
	f.mu.Unlock()
	slices.Reverse(snapshot)

	return func(yield func(domain.Message, error) bool) {
		if historyErr != nil {
			yield(domain.Message{}, historyErr)
			return
		}
		for _, m := range snapshot {
			f.mu.Lock()
			f.historyReads++
			f.mu.Unlock()
			if !yield(m, nil) {
				return
			}
		}
	}
}

func (f *fakeClient) SendMessage(ctx context.Context, channelID domain.ID, out platform.OutgoingMessage) (domain.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[channelID]; err != nil {
		return domain.Message{}, err
	}
	f.nextID++
	msg := domain.Message{
		ID:        f.nextID,
		ChannelID: channelID,
		AuthorID:  testBotID,
		Content:   out.Content,
		Reference: out.Reference,
	}
	f.channels[channelID] = append(f.channels[channelID], msg)
	f.sends = append(f.sends, sentRecord{ChannelID: channelID, MessageID: msg.ID, Msg: out})
	return msg, nil
}

func (f *fakeClient) EditMessage(ctx context.Context, channelID, messageID domain.ID, edit platform.MessageEdit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, editRecord{ChannelID: channelID, MessageID: messageID, Edit: edit})
	return nil
}

func (f *fakeClient) DeleteMessage(ctx context.Context, channelID, messageID domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if !f.remove(channelID, messageID) {
		return errUnknownMessage
	}
	f.deletes = append(f.deletes, targetRecord{ChannelID: channelID, MessageID: messageID})
	return nil
}

func (f *fakeClient) DownloadAttachment(ctx context.Context, attachment domain.Attachment) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadCalls = append(f.downloadCalls, attachment.URL)
	if err := f.downloadErr[attachment.URL]; err != nil {
		return nil, err
	}
	if data, ok := f.downloads[attachment.URL]; ok {
		return data, nil
	}
	return []byte(attachment.Filename), nil
}

func (f *fakeClient) SupportsBroadcast(ctx context.Context, channelID domain.ID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.broadcast[channelID], nil
}

func (f *fakeClient) PromoteMessage(ctx context.Context, channelID, messageID domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.promoteErr != nil {
		return f.promoteErr
	}
	f.promotions = append(f.promotions, targetRecord{ChannelID: channelID, MessageID: messageID})
	return nil
}

func (f *fakeClient) historyReadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyReads
}

// sendsTo returns the sends addressed to channelID.
func (f *fakeClient) sendsTo(channelID domain.ID) []sentRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentRecord
	for _, s := range f.sends {
		if s.ChannelID == channelID {
			out = append(out, s)
		}
	}
	return out
}

// linkMessages returns bot messages in channelID that parse as links.
func (f *fakeClient) linkMessages(channelID domain.ID) []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Message
	for _, m := range f.channels[channelID] {
		if m.AuthorID != testBotID {
			continue
		}
		if _, err := domain.ParseLink(m.Content); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// memIndex is an in-memory storage.LinkRepository.
type memIndex struct {
	mu    sync.Mutex
	links map[domain.ID]domain.Link
}

func newMemIndex() *memIndex { return &memIndex{links: make(map[domain.ID]domain.Link)} }

func (m *memIndex) SaveLink(ctx context.Context, link domain.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[link.SourceMessageID] = link
	return nil
}

func (m *memIndex) GetLinkBySource(ctx context.Context, sourceID domain.ID) (domain.Link, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[sourceID]
	return link, ok, nil
}

func (m *memIndex) DeleteLink(ctx context.Context, sourceID domain.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, sourceID)
	return nil
}

func (m *memIndex) Close() error { return nil }

// recordingEvents captures published envelopes.
type recordingEvents struct {
	mu   sync.Mutex
	keys []string
	envs []events.Envelope
}

func (r *recordingEvents) Publish(ctx context.Context, key string, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	r.envs = append(r.envs, env)
	return nil
}

func (r *recordingEvents) Close() error { return nil }

// recordingAlerts captures operator alerts.
type recordingAlerts struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingAlerts) Notify(ctx context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func testLogger() logrus.FieldLogger {
	logger, _ := test.NewNullLogger()
	return logger
}

type testRig struct {
	client     *fakeClient
	index      *memIndex
	events     *recordingEvents
	alerts     *recordingAlerts
	pointer    *DestinationPointer
	dispatcher *Dispatcher
}

// newTestRig wires a Dispatcher over fakes. index may be nil to force history scans.
func newTestRig(limit uint32, withIndex bool) *testRig {
	client := newFakeClient()
	rig := &testRig{
		client:  client,
		events:  &recordingEvents{},
		alerts:  &recordingAlerts{},
		pointer: NewDestinationPointer(testDestChan),
	}
	log := testLogger()

	var linker *Linker
	if withIndex {
		rig.index = newMemIndex()
		linker = NewLinker(client, rig.index, 0, log)
	} else {
		linker = NewLinker(client, nil, 0, log)
	}

	rig.dispatcher = NewDispatcher(Options{
		SourceChannelID: testSourceChan,
		ApprovalEmoji:   testEmoji,
	}, Deps{
		Client:    client,
		Pointer:   rig.pointer,
		Cloner:    NewCloner(NewMaterializer(client, 2, log), limit),
		Publisher: NewPublisher(client, log),
		Linker:    linker,
		Events:    rig.events,
		Alerts:    rig.alerts,
	}, log)
	return rig
}

func (r *testRig) approve(msg domain.Message, userID domain.ID) error {
	return r.dispatcher.HandleReactionAdd(context.Background(), platform.ReactionEvent{
		ChannelID: msg.ChannelID,
		MessageID: msg.ID,
		UserID:    userID,
		Emoji:     testEmoji,
	})
}

func attachment(id int, size uint32) domain.Attachment {
	return domain.Attachment{
		ID:       domain.ID(id),
		Filename: fmt.Sprintf("file%d.bin", id),
		URL:      fmt.Sprintf("https://cdn.example/%d", id),
		Size:     size,
	}
}
