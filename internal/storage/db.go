package storage

import (
	"errors"
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrPersistence tags durable-store failures. Callers keep their in-memory
// state and decide whether a failed write is fatal to the operation.
var ErrPersistence = errors.New("persistence failure")

// Store wraps the sqlite database. It is constructed once at startup and
// passed to the services that need durability.
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the database and migrates the schema
func Open(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Contact{}, &ConversationEntry{}, &ConnectorRecord{}); err != nil {
		return nil, err
	}

	log.Printf("[Storage] Database initialized: %s", dbPath)
	return &Store{db: db}, nil
}

// SaveContact upserts a contact by primary key
func (s *Store) SaveContact(c *Contact) error {
	if err := s.db.Save(c).Error; err != nil {
		return fmt.Errorf("%w: save contact %s: %v", ErrPersistence, c.ContactID, err)
	}
	return nil
}

// DeleteContact removes a contact and its conversation entries
func (s *Store) DeleteContact(contactID string) error {
	if err := s.db.Delete(&Contact{}, "contact_id = ?", contactID).Error; err != nil {
		return fmt.Errorf("%w: delete contact %s: %v", ErrPersistence, contactID, err)
	}
	if err := s.db.Delete(&ConversationEntry{}, "contact_id = ?", contactID).Error; err != nil {
		return fmt.Errorf("%w: delete conversation %s: %v", ErrPersistence, contactID, err)
	}
	return nil
}

// LoadContacts returns all persisted contacts
func (s *Store) LoadContacts() ([]Contact, error) {
	var contacts []Contact
	err := s.db.Order("last_accessed DESC").Find(&contacts).Error
	return contacts, err
}

// AppendEntry adds one conversation entry
func (s *Store) AppendEntry(e *ConversationEntry) error {
	if err := s.db.Create(e).Error; err != nil {
		return fmt.Errorf("%w: append entry for %s: %v", ErrPersistence, e.ContactID, err)
	}
	return nil
}

// PruneEntries drops the oldest entries of a contact beyond keep
func (s *Store) PruneEntries(contactID string, keep int) error {
	var count int64
	if err := s.db.Model(&ConversationEntry{}).Where("contact_id = ?", contactID).Count(&count).Error; err != nil {
		return fmt.Errorf("%w: count entries for %s: %v", ErrPersistence, contactID, err)
	}
	excess := count - int64(keep)
	if excess <= 0 {
		return nil
	}
	var victims []ConversationEntry
	if err := s.db.Where("contact_id = ?", contactID).
		Order("timestamp ASC").
		Limit(int(excess)).
		Find(&victims).Error; err != nil {
		return fmt.Errorf("%w: select prune victims for %s: %v", ErrPersistence, contactID, err)
	}
	ids := make([]string, len(victims))
	for i, v := range victims {
		ids[i] = v.ID
	}
	if err := s.db.Delete(&ConversationEntry{}, "id IN ?", ids).Error; err != nil {
		return fmt.Errorf("%w: prune entries for %s: %v", ErrPersistence, contactID, err)
	}
	return nil
}

// DeleteEntries removes a contact's conversation history
func (s *Store) DeleteEntries(contactID string) error {
	if err := s.db.Delete(&ConversationEntry{}, "contact_id = ?", contactID).Error; err != nil {
		return fmt.Errorf("%w: delete entries for %s: %v", ErrPersistence, contactID, err)
	}
	return nil
}

// LoadEntries returns the newest limit entries of a contact in
// chronological order (oldest first)
func (s *Store) LoadEntries(contactID string, limit int) ([]ConversationEntry, error) {
	var entries []ConversationEntry
	err := s.db.Where("contact_id = ?", contactID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// SaveConnector upserts a connector credential record
func (s *Store) SaveConnector(rec *ConnectorRecord) error {
	if err := s.db.Save(rec).Error; err != nil {
		return fmt.Errorf("%w: save connector %s: %v", ErrPersistence, rec.Platform, err)
	}
	return nil
}

// GetConnector returns the credential record for a platform
func (s *Store) GetConnector(platform string) (*ConnectorRecord, error) {
	var rec ConnectorRecord
	err := s.db.First(&rec, "platform = ?", platform).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListConnectors returns all stored connector records
func (s *Store) ListConnectors() ([]ConnectorRecord, error) {
	var recs []ConnectorRecord
	err := s.db.Find(&recs).Error
	return recs, err
}
