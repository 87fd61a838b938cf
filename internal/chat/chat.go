package chat

import (
	"slices"
	"sync"

	"tasktango/internal/models"
)

// Chat is the rendered message list of one channel or direct conversation.
// Records are kept ordered by timestamp, then id, and every id appears at most once.
type Chat struct {
	ID         string
	MaxRecords int

	// RecordCallback is called for every record that Merge actually inserts.
	RecordCallback func(chatID string, record models.ChatMessage)

	// records and ids are guarded by mux; read them through GetRecords.
	records []models.ChatMessage
	ids     map[int64]struct{}
	mux     sync.RWMutex
}

type Config struct {
	ID             string
	MaxRecords     int
	RecordCallback func(chatID string, record models.ChatMessage)
}

func New(config Config) *Chat {
	return &Chat{
		ID:             config.ID,
		MaxRecords:     config.MaxRecords,
		RecordCallback: config.RecordCallback,
		ids:            make(map[int64]struct{}),
	}
}

func compareRecords(a, b models.ChatMessage) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	default:
		return 0
	}
}

// Merge inserts records into the ordered list:
// - records whose id is already present are skipped
// - the rest are placed by timestamp, then id
// - the oldest records are dropped once MaxRecords is exceeded
// It returns the inserted records in the order they were given.
func (c *Chat) Merge(records ...models.ChatMessage) []models.ChatMessage {
	c.mux.Lock()
	inserted := make([]models.ChatMessage, 0, len(records))
	for _, record := range records {
		if _, ok := c.ids[record.ID]; ok {
			continue
		}
		i, _ := slices.BinarySearchFunc(c.records, record, compareRecords)
		c.records = slices.Insert(c.records, i, record)
		c.ids[record.ID] = struct{}{}
		inserted = append(inserted, record)
	}
	c.trim()
	// A record older than everything kept may have been trimmed right away.
	inserted = slices.DeleteFunc(inserted, func(record models.ChatMessage) bool {
		_, ok := c.ids[record.ID]
		return !ok
	})
	callback := c.RecordCallback
	c.mux.Unlock()

	if callback != nil {
		for _, record := range inserted {
			callback(c.ID, record)
		}
	}
	return inserted
}

func (c *Chat) trim() {
	if c.MaxRecords <= 0 || len(c.records) <= c.MaxRecords {
		return
	}
	drop := len(c.records) - c.MaxRecords
	for _, record := range c.records[:drop] {
		delete(c.ids, record.ID)
	}
	c.records = slices.Delete(c.records, 0, drop)
}

// GetRecords returns a copy of the whole ordered list.
func (c *Chat) GetRecords() []models.ChatMessage {
	c.mux.RLock()
	defer c.mux.RUnlock()

	return slices.Clone(c.records)
}

// GetLastRecords returns up to count newest records, oldest first.
func (c *Chat) GetLastRecords(count int) []models.ChatMessage {
	c.mux.RLock()
	defer c.mux.RUnlock()

	if count > len(c.records) {
		count = len(c.records)
	}
	if count <= 0 {
		return []models.ChatMessage{}
	}
	return slices.Clone(c.records[len(c.records)-count:])
}

func (c *Chat) Len() int {
	c.mux.RLock()
	defer c.mux.RUnlock()

	return len(c.records)
}
