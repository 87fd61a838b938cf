package chat

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"tasktango/internal/models"
)

var t0 = time.Date(2025, 8, 2, 10, 0, 0, 0, time.UTC)

func msg(id int64, offset time.Duration, sender string) models.ChatMessage {
	return models.ChatMessage{
		ID:        id,
		Sender:    models.User{StringID: sender},
		Content:   fmt.Sprintf("msg %d", id),
		Timestamp: t0.Add(offset),
		ChannelID: "1",
	}
}

func ids(records []models.ChatMessage) []int64 {
	out := make([]int64, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNew(t *testing.T) {
	c := New(Config{ID: "channel_1", MaxRecords: 10})
	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.MaxRecords != 10 {
		t.Errorf("expected MaxRecords 10, got %d", c.MaxRecords)
	}
	if c.Len() != 0 {
		t.Errorf("expected empty chat, got %d records", c.Len())
	}
}

func TestChat_MergeOrdersByTimestamp(t *testing.T) {
	c := New(Config{MaxRecords: 10})

	// T2(5), T1(4), T3(6)
	c.Merge(msg(5, 2*time.Second, "u"), msg(4, time.Second, "u"), msg(6, 3*time.Second, "u"))

	got := ids(c.GetRecords())
	expected := []int64{4, 5, 6}
	if !equalIDs(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestChat_MergeTieBreaksByID(t *testing.T) {
	c := New(Config{})
	c.Merge(msg(12, 0, "u"), msg(10, 0, "u"), msg(11, 0, "u"))

	got := ids(c.GetRecords())
	expected := []int64{10, 11, 12}
	if !equalIDs(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestChat_MergeIsIdempotent(t *testing.T) {
	c := New(Config{MaxRecords: 10})

	first := c.Merge(msg(101, time.Second, "u"))
	second := c.Merge(msg(101, time.Second, "u"))

	if len(first) != 1 {
		t.Errorf("expected 1 inserted record, got %d", len(first))
	}
	if len(second) != 0 {
		t.Errorf("expected duplicate to be skipped, got %d inserted", len(second))
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 record, got %d", c.Len())
	}
	if !equalIDs(ids(c.GetRecords()), []int64{101}) {
		t.Errorf("expected [101], got %v", ids(c.GetRecords()))
	}
}

func TestChat_MergeLateHistoryPage(t *testing.T) {
	c := New(Config{})

	// live push arrives first
	c.Merge(msg(30, 30*time.Second, "u"))
	// then the history page that overlaps it
	c.Merge(msg(10, 10*time.Second, "u"), msg(20, 20*time.Second, "u"), msg(30, 30*time.Second, "u"))
	// and another live push
	c.Merge(msg(31, 31*time.Second, "u"))

	got := ids(c.GetRecords())
	expected := []int64{10, 20, 30, 31}
	if !equalIDs(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestChat_MaxRecordsDropsOldest(t *testing.T) {
	c := New(Config{MaxRecords: 3})

	for i := 0; i < 4; i++ {
		c.Merge(msg(int64(i), time.Duration(i)*time.Second, "u"))
	}

	recs := c.GetLastRecords(3)
	expected := []int64{1, 2, 3}
	if !equalIDs(ids(recs), expected) {
		t.Errorf("expected %v, got %v", expected, ids(recs))
	}
	if _, ok := c.ids[0]; ok {
		t.Error("trimmed record must be forgotten")
	}
	// a forgotten id may come back if it is new enough
	if got := c.Merge(msg(0, 10*time.Second, "u")); len(got) != 1 {
		t.Errorf("expected id 0 to be accepted again, got %v", ids(got))
	}

	// older than everything kept: inserted and trimmed at once
	inserted := c.Merge(msg(-1, -time.Second, "u"))
	if len(inserted) != 0 {
		t.Errorf("expected nothing to be reported, got %v", ids(inserted))
	}
}

func TestChat_GetLastRecords(t *testing.T) {
	c := New(Config{MaxRecords: 10})
	for i := 0; i < 5; i++ {
		c.Merge(msg(int64(i), time.Duration(i)*time.Second, "u"))
	}

	recs := c.GetLastRecords(2)
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[1].Content != "msg 4" {
		t.Errorf("expected last msg 'msg 4', got '%s'", recs[1].Content)
	}
	if len(c.GetLastRecords(100)) != 5 {
		t.Error("expected count to be clamped")
	}
	if len(c.GetLastRecords(0)) != 0 {
		t.Error("expected no records for count 0")
	}
}

func TestChat_ConcurrentMerge(t *testing.T) {
	const total = 200
	c := New(Config{ID: "channel_1"})

	var (
		mu       sync.Mutex
		reported = make(map[int64]int)
	)
	c.RecordCallback = func(_ string, r models.ChatMessage) {
		mu.Lock()
		reported[r.ID]++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Go(func() {
			// every worker delivers the whole set newest first, in batches of varying size
			for i := total - 1; i >= 0; {
				n := w + 1
				var batch []models.ChatMessage
				for ; n > 0 && i >= 0; n, i = n-1, i-1 {
					batch = append(batch, msg(int64(i), time.Duration(i%50)*time.Second, "u"))
				}
				c.Merge(batch...)
			}
		})
	}
	wg.Wait()

	records := c.GetRecords()
	if len(records) != total {
		t.Fatalf("expected %d records, got %d", total, len(records))
	}
	seen := make(map[int64]bool, total)
	for i, r := range records {
		if seen[r.ID] {
			t.Fatalf("duplicate id %d", r.ID)
		}
		seen[r.ID] = true
		if i > 0 && !records[i-1].Before(r) {
			t.Fatalf("records %d and %d out of order: %d, %d", i-1, i, records[i-1].ID, r.ID)
		}
	}
	if len(reported) != total {
		t.Errorf("expected %d reported ids, got %d", total, len(reported))
	}
	for id, n := range reported {
		if n != 1 {
			t.Errorf("id %d reported %d times", id, n)
		}
	}
}

func TestChat_Callback(t *testing.T) {
	received := make(map[int64]string)
	c := New(Config{
		ID: "channel_1",
		RecordCallback: func(chatID string, r models.ChatMessage) {
			received[r.ID] = chatID
		},
	})

	c.Merge(msg(1, 0, "u"), msg(2, time.Second, "u"))
	c.Merge(msg(2, time.Second, "u"))

	if len(received) != 2 {
		t.Errorf("expected 2 callbacks, got %d", len(received))
	}
	if received[1] != "channel_1" {
		t.Errorf("expected chat id channel_1, got %s", received[1])
	}
}

func TestClassify(t *testing.T) {
	mine := Classify(msg(1, 0, "u-42"), "u-42")
	if !mine.Sender.IsCurrentUser {
		t.Error("u-42 vs u-42 should be mine")
	}

	theirs := Classify(msg(2, 0, "u-7"), "u-42")
	if theirs.Sender.IsCurrentUser {
		t.Error("u-7 vs u-42 should be theirs")
	}

	if IsMine(msg(3, 0, ""), "") {
		t.Error("empty ids must never match")
	}
}

func TestKeys(t *testing.T) {
	if DMKey("u-7", "u-42") != DMKey("u-42", "u-7") {
		t.Error("DM key must not depend on order")
	}
	key := DMKey("u-7", "u-42")
	if !IsDMKey("u-7", key) || !IsDMKey("u-42", key) {
		t.Errorf("%s should include both users", key)
	}
	if IsDMKey("u-1", key) {
		t.Errorf("%s should not include u-1", key)
	}

	dm := msg(1, 0, "u-7")
	dm.ChannelID = ""
	if KeyFor(dm, "u-42", "") != key {
		t.Errorf("expected %s, got %s", key, KeyFor(dm, "u-42", ""))
	}
	own := msg(2, 0, "u-42")
	own.ChannelID = ""
	if KeyFor(own, "u-42", "u-7") != key {
		t.Errorf("expected %s, got %s", key, KeyFor(own, "u-42", "u-7"))
	}
	if KeyFor(msg(3, 0, "u-7"), "u-42", "") != "channel_1" {
		t.Error("channel message should use the channel key")
	}
}
