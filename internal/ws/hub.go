package ws

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/c-pro/geche"

	"tasktango/internal/chat"
	"tasktango/internal/codec"
	"tasktango/internal/models"
)

const (
	DefaultMaxRecords = 500
	DefaultEchoTTL    = time.Minute
)

type sessionInfo interface {
	CurrentUserID() string
}

type userDirectory interface {
	Upsert(user models.User) error
}

type messageStore interface {
	UpsertMessages(chatID string, messages []models.ChatMessage) error
	LastMessages(chatID string, count int) ([]models.ChatMessage, error)
	ListChatIDs() ([]string, error)
}

type HubConfig struct {
	MaxRecords int
	// EchoTTL is how long the recipient of a sent private message is remembered
	// while waiting for the server to echo it back.
	EchoTTL time.Duration
}

// Hub routes every decoded message into the chat it belongs to.
type Hub struct {
	// Map of chatID -> Chat object
	chats map[string]*chat.Chat

	// Recipients of private messages we sent, keyed by content, waiting for the server echo.
	// Entries that never get an echo expire after EchoTTL.
	pendingPeers *geche.Locker[string, []string]

	listeners map[int]func(chatID string, msg models.ChatMessage)
	nextID    int

	session    sessionInfo
	users      userDirectory
	store      messageStore
	maxRecords int

	mu sync.RWMutex
}

// NewHub creates a hub. ctx bounds the background expiry of pending echoes.
func NewHub(ctx context.Context, config HubConfig, session sessionInfo, users userDirectory, store messageStore) *Hub {
	if config.MaxRecords <= 0 {
		config.MaxRecords = DefaultMaxRecords
	}
	if config.EchoTTL <= 0 {
		config.EchoTTL = DefaultEchoTTL
	}
	pending := geche.NewMapTTLCache[string, []string](ctx, config.EchoTTL, config.EchoTTL)
	pending.OnEvict(func(_ string, peers []string) {
		slog.Info("no echo for sent private message", "recipients", peers)
	})
	return &Hub{
		chats:        make(map[string]*chat.Chat),
		pendingPeers: geche.NewLocker[string, []string](pending),
		listeners:    make(map[int]func(string, models.ChatMessage)),
		session:      session,
		users:        users,
		store:        store,
		maxRecords:   config.MaxRecords,
	}
}

func (h *Hub) getChat(id string) *chat.Chat {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.chats[id]
	if !ok {
		c = chat.New(chat.Config{
			ID:             id,
			MaxRecords:     h.maxRecords,
			RecordCallback: h.handleRecordCallback,
		})
		h.chats[id] = c
	}
	return c
}

// Seed fills the chats from local storage.
func (h *Hub) Seed() error {
	if h.store == nil {
		return nil
	}
	ids, err := h.store.ListChatIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		msgs, err := h.store.LastMessages(id, h.maxRecords)
		if err != nil {
			return err
		}
		h.getChat(id).Merge(chat.ClassifyAll(msgs, h.session.CurrentUserID())...)
	}
	return nil
}

// Subscribe registers fn for every record that lands in a chat. The returned func unsubscribes.
func (h *Hub) Subscribe(fn func(chatID string, msg models.ChatMessage)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.listeners, id)
	}
}

// ExpectEcho remembers the recipient of a private message we just sent,
// so the server's copy of it lands in the right direct chat.
func (h *Hub) ExpectEcho(msg models.PrivateMessage) {
	tx := h.pendingPeers.Lock()
	defer tx.Unlock()

	key := echoKey(msg.Content)
	peers, err := tx.Get(key)
	if err != nil {
		peers = nil
	}
	tx.Set(key, append(slices.Clip(peers), msg.RecipientID))
}

func (h *Hub) takePeer(content string) string {
	tx := h.pendingPeers.Lock()
	defer tx.Unlock()

	key := echoKey(content)
	peers, err := tx.Get(key)
	if err != nil || len(peers) == 0 {
		return ""
	}
	if len(peers) == 1 {
		_ = tx.Del(key)
	} else {
		tx.Set(key, peers[1:])
	}
	return peers[0]
}

// The cache reserves the zero key, and content may be empty.
func echoKey(content string) string {
	return "echo:" + content
}

// HandleFrame decodes one server push. Unknown types and malformed frames are logged and dropped.
func (h *Hub) HandleFrame(data []byte) {
	in, err := codec.DecodeIncoming(data)
	if err != nil {
		var protoErr *codec.ProtocolError
		if errors.As(err, &protoErr) {
			slog.Info("ignoring unknown frame", "type", protoErr.Type)
			return
		}
		slog.Warn("dropping malformed frame", "error", err)
		return
	}
	h.Receive(in.Message)
}

// Receive classifies a live message and merges it into its chat.
func (h *Hub) Receive(msg models.ChatMessage) (string, bool) {
	currentUserID := h.session.CurrentUserID()
	msg = chat.Classify(msg, currentUserID)

	var recipientID string
	if msg.IsDirect() && msg.Sender.IsCurrentUser {
		recipientID = h.takePeer(msg.Content)
	}
	h.rememberSender(msg.Sender)

	key := chat.KeyFor(msg, currentUserID, recipientID)
	inserted := h.getChat(key).Merge(msg)
	return key, len(inserted) > 0
}

// LoadHistory merges a fetched history page into the chat named key.
func (h *Hub) LoadHistory(key string, msgs []models.ChatMessage) []models.ChatMessage {
	msgs = chat.ClassifyAll(msgs, h.session.CurrentUserID())
	for _, msg := range msgs {
		h.rememberSender(msg.Sender)
	}
	return h.getChat(key).Merge(msgs...)
}

func (h *Hub) rememberSender(sender models.User) {
	if h.users == nil || !sender.HasStableID() {
		return
	}
	if err := h.users.Upsert(sender); err != nil {
		slog.Warn("failed to update user", "user_id", sender.StringID, "error", err)
	}
}

// Records returns the ordered messages of a chat.
func (h *Hub) Records(key string) []models.ChatMessage {
	h.mu.RLock()
	c, ok := h.chats[key]
	h.mu.RUnlock()

	if !ok {
		return []models.ChatMessage{}
	}
	return c.GetRecords()
}

// ChatIDs returns the keys of all chats known to the hub, sorted.
func (h *Hub) ChatIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.chats))
	for id := range h.chats {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LastRecords returns up to count newest messages of a chat and the chat's size.
func (h *Hub) LastRecords(key string, count int) ([]models.ChatMessage, int) {
	h.mu.RLock()
	c, ok := h.chats[key]
	h.mu.RUnlock()

	if !ok {
		return []models.ChatMessage{}, 0
	}
	return c.GetLastRecords(count), c.Len()
}

func (h *Hub) handleRecordCallback(chatID string, record models.ChatMessage) {
	if h.store != nil {
		if err := h.store.UpsertMessages(chatID, []models.ChatMessage{record}); err != nil {
			slog.Error("failed to persist message", "chat_id", chatID, "message_id", record.ID, "error", err)
		}
	}

	h.mu.RLock()
	listeners := make([]int, 0, len(h.listeners))
	for id := range h.listeners {
		listeners = append(listeners, id)
	}
	slices.Sort(listeners)
	fns := make([]func(string, models.ChatMessage), 0, len(listeners))
	for _, id := range listeners {
		fns = append(fns, h.listeners[id])
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(chatID, record)
	}
}
