package history

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoreply/internal/connector"
	"autoreply/internal/storage"
)

// DefaultCap bounds each contact's retained conversation history
const DefaultCap = 50

// Entry is one message in a contact's history
type Entry struct {
	ID                string             `json:"id"`
	Content           string             `json:"content"`
	FromContact       bool               `json:"from_contact"`
	Platform          connector.Platform `json:"platform"`
	AssistantResponse bool               `json:"assistant_response"`
	Timestamp         time.Time          `json:"timestamp"`
}

// Store is the durability boundary of the log
type Store interface {
	AppendEntry(e *storage.ConversationEntry) error
	PruneEntries(contactID string, keep int) error
	DeleteEntries(contactID string) error
	LoadEntries(contactID string, limit int) ([]storage.ConversationEntry, error)
}

// Log keeps a capped per-contact conversation history. Append-only except
// for oldest-first eviction once a contact passes the cap.
type Log struct {
	mu      sync.RWMutex
	entries map[string][]Entry
	cap     int
	store   Store
}

// NewLog creates a conversation log with the given cap (DefaultCap if <= 0).
// A nil store keeps history in memory only.
func NewLog(cap int, store Store) *Log {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Log{
		entries: make(map[string][]Entry),
		cap:     cap,
		store:   store,
	}
}

// Append adds an entry to a contact's history, evicting the oldest entries
// once the cap is exceeded. The write-through failure is logged and the
// in-memory append stands; the returned error lets callers decide.
func (l *Log) Append(contactID string, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	list := append(l.entries[contactID], e)
	if len(list) > l.cap {
		list = list[len(list)-l.cap:]
	}
	l.entries[contactID] = list
	l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	rec := &storage.ConversationEntry{
		ID:                e.ID,
		ContactID:         contactID,
		Content:           e.Content,
		FromContact:       e.FromContact,
		Platform:          string(e.Platform),
		AssistantResponse: e.AssistantResponse,
		Timestamp:         e.Timestamp,
	}
	if err := l.store.AppendEntry(rec); err != nil {
		log.Printf("[History] Write-through failed for %s: %v", contactID, err)
		return err
	}
	if err := l.store.PruneEntries(contactID, l.cap); err != nil {
		log.Printf("[History] Prune failed for %s: %v", contactID, err)
		return err
	}
	return nil
}

// Recent returns the last n entries in chronological order (oldest first)
func (l *Log) Recent(contactID string, n int) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	list := l.entries[contactID]
	if n <= 0 || n > len(list) {
		n = len(list)
	}
	result := make([]Entry, n)
	copy(result, list[len(list)-n:])
	return result
}

// Len returns the number of retained entries for a contact
func (l *Log) Len(contactID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries[contactID])
}

// Drop removes a contact's history entirely (used on revocation)
func (l *Log) Drop(contactID string) error {
	l.mu.Lock()
	delete(l.entries, contactID)
	l.mu.Unlock()

	if l.store == nil {
		return nil
	}
	if err := l.store.DeleteEntries(contactID); err != nil {
		log.Printf("[History] Drop write-through failed for %s: %v", contactID, err)
		return err
	}
	return nil
}

// LoadContact restores a contact's history from the store
func (l *Log) LoadContact(contactID string) error {
	if l.store == nil {
		return nil
	}
	records, err := l.store.LoadEntries(contactID, l.cap)
	if err != nil {
		return err
	}
	entries := make([]Entry, len(records))
	for i, r := range records {
		entries[i] = Entry{
			ID:                r.ID,
			Content:           r.Content,
			FromContact:       r.FromContact,
			Platform:          connector.Platform(r.Platform),
			AssistantResponse: r.AssistantResponse,
			Timestamp:         r.Timestamp,
		}
	}
	l.mu.Lock()
	l.entries[contactID] = entries
	l.mu.Unlock()
	return nil
}
