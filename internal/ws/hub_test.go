package ws

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tasktango/internal/chat"
	"tasktango/internal/codec"
	"tasktango/internal/directory"
	"tasktango/internal/models"
)

type staticSession string

func (s staticSession) CurrentUserID() string { return string(s) }

type memoryMessages struct {
	mu    sync.Mutex
	saved map[string][]models.ChatMessage
}

func newMemoryMessages() *memoryMessages {
	return &memoryMessages{saved: make(map[string][]models.ChatMessage)}
}

func (m *memoryMessages) UpsertMessages(chatID string, messages []models.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[chatID] = append(m.saved[chatID], messages...)
	return nil
}

func (m *memoryMessages) LastMessages(chatID string, count int) ([]models.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.saved[chatID]
	if len(msgs) > count {
		msgs = msgs[len(msgs)-count:]
	}
	return append([]models.ChatMessage(nil), msgs...), nil
}

func (m *memoryMessages) ListChatIDs() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.saved))
	for id := range m.saved {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memoryMessages) count(chatID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved[chatID])
}

func frame(id int64, senderID, content, ts, channel string) []byte {
	channelField := "null"
	if channel != "" {
		channelField = `"` + channel + `"`
	}
	return []byte(fmt.Sprintf(
		`{"type":"new_message","message":{"id":%d,"sender":{"id":1,"stringId":"%s","username":"%s","email":"%s@example.com","name":"N","isOnline":true},"content":"%s","timestamp":"%s","channelId":%s}}`,
		id, senderID, senderID, senderID, content, ts, channelField,
	))
}

func TestHub_HandleFrame(t *testing.T) {
	store := newMemoryMessages()
	users := directory.New()
	h := NewHub(t.Context(), HubConfig{MaxRecords: 10}, staticSession("u-42"), users, store)

	var received []int64
	unsubscribe := h.Subscribe(func(chatID string, msg models.ChatMessage) {
		received = append(received, msg.ID)
	})

	h.HandleFrame(frame(2, "u-7", "second", "2025-08-02T10:00:02Z", "3"))
	h.HandleFrame(frame(1, "u-42", "first", "2025-08-02T10:00:01Z", "3"))
	h.HandleFrame(frame(2, "u-7", "second", "2025-08-02T10:00:02Z", "3"))

	records := h.Records(chat.ChannelKey("3"))
	require.Len(t, records, 2)
	require.Equal(t, int64(1), records[0].ID)
	require.True(t, records[0].Sender.IsCurrentUser)
	require.False(t, records[1].Sender.IsCurrentUser)

	require.Equal(t, []int64{2, 1}, received)
	require.Equal(t, 2, store.count(chat.ChannelKey("3")))

	sender, err := users.Get("u-7")
	require.NoError(t, err)
	require.True(t, sender.IsOnline)

	unsubscribe()
	h.HandleFrame(frame(3, "u-7", "third", "2025-08-02T10:00:03Z", "3"))
	require.Len(t, received, 2)
}

func TestHub_IgnoresBadFrames(t *testing.T) {
	h := NewHub(t.Context(), HubConfig{}, staticSession("u-42"), nil, nil)

	h.HandleFrame([]byte(`{"type":"typing","message":{}}`))
	h.HandleFrame([]byte(`{"type":"new_message","message":{"id":5}}`))
	h.HandleFrame([]byte(`not json`))

	require.Empty(t, h.ChatIDs())
}

func TestHub_UnknownFrameIsLoggedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := NewHub(t.Context(), HubConfig{}, staticSession("u-42"), nil, nil)
	h.HandleFrame([]byte(`{"type":"typing","message":{}}`))

	require.Contains(t, buf.String(), "level=INFO")
	require.Contains(t, buf.String(), "ignoring unknown frame")
	require.Contains(t, buf.String(), "type=typing")
	require.Empty(t, h.ChatIDs())
}

func TestHub_DirectMessages(t *testing.T) {
	h := NewHub(t.Context(), HubConfig{}, staticSession("u-42"), nil, nil)

	// From a peer
	key, ok := h.Receive(mustMessage(t, frame(10, "u-7", "hey", "2025-08-02T10:00:00Z", "")))
	require.True(t, ok)
	require.Equal(t, chat.DMKey("u-42", "u-7"), key)

	// Echo of our own message lands in the peer's chat
	h.ExpectEcho(models.PrivateMessage{Content: "hi back", SenderID: "u-42", RecipientID: "u-7"})
	key, ok = h.Receive(mustMessage(t, frame(11, "u-42", "hi back", "2025-08-02T10:00:05Z", "")))
	require.True(t, ok)
	require.Equal(t, chat.DMKey("u-7", "u-42"), key)

	records := h.Records(key)
	require.Len(t, records, 2)
	require.True(t, records[1].Sender.IsCurrentUser)

	// Same content sent twice to different peers is routed in send order
	h.ExpectEcho(models.PrivateMessage{Content: "ok", SenderID: "u-42", RecipientID: "u-7"})
	h.ExpectEcho(models.PrivateMessage{Content: "ok", SenderID: "u-42", RecipientID: "u-9"})
	key, _ = h.Receive(mustMessage(t, frame(12, "u-42", "ok", "2025-08-02T10:00:06Z", "")))
	require.Equal(t, chat.DMKey("u-42", "u-7"), key)
	key, _ = h.Receive(mustMessage(t, frame(13, "u-42", "ok", "2025-08-02T10:00:07Z", "")))
	require.Equal(t, chat.DMKey("u-42", "u-9"), key)
}

func TestHub_PendingEchoExpires(t *testing.T) {
	h := NewHub(t.Context(), HubConfig{EchoTTL: 20 * time.Millisecond}, staticSession("u-42"), nil, nil)

	h.ExpectEcho(models.PrivateMessage{Content: "lost", SenderID: "u-42", RecipientID: "u-7"})
	time.Sleep(100 * time.Millisecond)

	tx := h.pendingPeers.RLock()
	_, err := tx.Get(echoKey("lost"))
	tx.Unlock()
	require.Error(t, err)

	// A late echo no longer knows its peer and lands in the self chat
	key, ok := h.Receive(mustMessage(t, frame(20, "u-42", "lost", "2025-08-02T10:00:00Z", "")))
	require.True(t, ok)
	require.Equal(t, chat.DMKey("u-42", "u-42"), key)
}

func TestHub_LivePushesDuringHistoryLoad(t *testing.T) {
	const total = 120
	store := newMemoryMessages()
	h := NewHub(t.Context(), HubConfig{}, staticSession("u-42"), directory.New(), store)
	key := chat.ChannelKey("3")

	base := time.Date(2025, 8, 2, 10, 0, 0, 0, time.UTC)
	all := make([]models.ChatMessage, 0, total)
	for i := int64(1); i <= total; i++ {
		all = append(all, models.ChatMessage{
			ID:        i,
			Sender:    models.User{ID: 7, StringID: "u-7", Username: "bob"},
			Content:   fmt.Sprintf("m%d", i),
			Timestamp: base.Add(time.Duration(i%40) * time.Second),
			ChannelID: "3",
		})
	}

	var wg sync.WaitGroup
	wg.Go(func() {
		// live pushes arrive newest first
		for i := total - 1; i >= 0; i-- {
			_, _ = h.Receive(all[i])
		}
	})
	wg.Go(func() {
		// overlapping history pages of 30 with a stride of 20
		for start := 0; start < total; start += 20 {
			end := min(start+30, total)
			h.LoadHistory(key, all[start:end])
		}
	})
	wg.Wait()

	records := h.Records(key)
	require.Len(t, records, total)
	require.True(t, slices.IsSortedFunc(records, func(a, b models.ChatMessage) int {
		switch {
		case a.Before(b):
			return -1
		case b.Before(a):
			return 1
		}
		return 0
	}))
	seen := make(map[int64]bool, total)
	for _, r := range records {
		require.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
	}
	require.Equal(t, total, store.count(key))
}

func TestHub_LoadHistoryAndSeed(t *testing.T) {
	store := newMemoryMessages()
	h := NewHub(t.Context(), HubConfig{MaxRecords: 3}, staticSession("u-42"), directory.New(), store)

	base := time.Date(2025, 8, 2, 10, 0, 0, 0, time.UTC)
	var page []models.ChatMessage
	for i := int64(1); i <= 5; i++ {
		page = append(page, models.ChatMessage{
			ID:        i,
			Sender:    models.User{ID: 1, StringID: "u-7", Username: "bob"},
			Content:   "m",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			ChannelID: "9",
		})
	}
	key := chat.ChannelKey("9")
	inserted := h.LoadHistory(key, page)
	require.Len(t, inserted, 3)

	records := h.Records(key)
	require.Len(t, records, 3)
	require.Equal(t, int64(3), records[0].ID)

	seeded := NewHub(t.Context(), HubConfig{MaxRecords: 3}, staticSession("u-42"), nil, store)
	require.NoError(t, seeded.Seed())
	require.Equal(t, []string{key}, seeded.ChatIDs())
	require.Len(t, seeded.Records(key), 3)

	last, size := seeded.LastRecords(key, 1)
	require.Equal(t, 3, size)
	require.Len(t, last, 1)
	require.Equal(t, int64(5), last[0].ID)

	none, size := seeded.LastRecords(chat.ChannelKey("404"), 1)
	require.Empty(t, none)
	require.Zero(t, size)
}

func mustMessage(t *testing.T, data []byte) models.ChatMessage {
	t.Helper()
	in, err := codec.DecodeIncoming(data)
	require.NoError(t, err)
	return in.Message
}
