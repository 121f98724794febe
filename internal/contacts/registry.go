package contacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"autoreply/internal/connector"
	"autoreply/internal/storage"
)

var (
	// ErrValidation tags profiles missing required fields
	ErrValidation = errors.New("invalid contact profile")
	// ErrNotFound is returned when a contact id is unknown
	ErrNotFound = errors.New("contact not found")
)

// DefaultAuthorizationTTL is applied when a profile has no expiry
const DefaultAuthorizationTTL = 30 * 24 * time.Hour

// Profile is an authorized contact and its personalization settings
type Profile struct {
	ContactID          string               `json:"contact_id"`
	Name               string               `json:"name"`
	Enabled            bool                 `json:"enabled"`
	Platforms          []connector.Platform `json:"platforms"`
	ExpiresAt          time.Time            `json:"expires_at"`
	PreferredStyle     string               `json:"preferred_style"`
	CustomInstructions string               `json:"custom_instructions"`
	ResponseDelay      int                  `json:"response_delay"`
	MaxResponseLength  int                  `json:"max_response_length"`
	IncludeSignature   bool                 `json:"include_signature"`
	Signature          string               `json:"signature"`
	LastAccessed       time.Time            `json:"last_accessed"`
	InteractionCount   int                  `json:"interaction_count"`
}

// PlatformEnabled reports whether auto-replies may go out on a platform
func (p *Profile) PlatformEnabled(platform connector.Platform) bool {
	for _, tag := range p.Platforms {
		if tag == platform {
			return true
		}
	}
	return false
}

// Store is the durability boundary of the registry. Writes go through on
// every mutation; a failed write does not roll back in-memory state.
type Store interface {
	SaveContact(c *storage.Contact) error
	DeleteContact(contactID string) error
	LoadContacts() ([]storage.Contact, error)
}

// Registry holds contact authorization state. Construct one per process
// and share it by reference.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	store    Store
	now      func() time.Time
}

// NewRegistry creates a registry backed by store. A nil store keeps all
// state in memory only.
func NewRegistry(store Store) *Registry {
	return &Registry{
		profiles: make(map[string]*Profile),
		store:    store,
		now:      time.Now,
	}
}

// Load restores persisted contacts into memory
func (r *Registry) Load() error {
	if r.store == nil {
		return nil
	}
	records, err := r.store.LoadContacts()
	if err != nil {
		return fmt.Errorf("load contacts: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range records {
		p := fromRecord(&records[i])
		r.profiles[p.ContactID] = p
	}
	log.Printf("[Contacts] Loaded %d contacts", len(records))
	return nil
}

// Authorize validates and upserts a contact profile. A missing expiry
// defaults to now + 30 days. Returns ErrValidation on missing fields and
// storage.ErrPersistence when the write-through fails (in-memory state is
// kept either way).
func (r *Registry) Authorize(p Profile) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(p.ContactID) == "" {
		return fmt.Errorf("%w: a phone, email or platform id is required", ErrValidation)
	}
	if p.ExpiresAt.IsZero() {
		p.ExpiresAt = r.now().Add(DefaultAuthorizationTTL)
	}
	if p.LastAccessed.IsZero() {
		p.LastAccessed = r.now()
	}

	r.mu.Lock()
	stored := p
	r.profiles[p.ContactID] = &stored
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveContact(toRecord(&stored)); err != nil {
			log.Printf("[Contacts] Write-through failed for %s: %v", p.ContactID, err)
			return err
		}
	}
	return nil
}

// Revoke removes a profile and its conversation history
func (r *Registry) Revoke(contactID string) error {
	r.mu.Lock()
	_, ok := r.profiles[contactID]
	if ok {
		delete(r.profiles, contactID)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, contactID)
	}

	if r.store != nil {
		if err := r.store.DeleteContact(contactID); err != nil {
			log.Printf("[Contacts] Revoke write-through failed for %s: %v", contactID, err)
			return err
		}
	}
	return nil
}

// IsAuthorized reports whether a contact may receive auto-replies right now
func (r *Registry) IsAuthorized(contactID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[contactID]
	if !ok {
		return false
	}
	return p.Enabled && r.now().Before(p.ExpiresAt)
}

// Get returns a copy of a contact profile
func (r *Registry) Get(contactID string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[contactID]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, contactID)
	}
	return *p, nil
}

// List returns all profiles sorted by last access, most recent first
func (r *Registry) List() []Profile {
	r.mu.RLock()
	result := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		result = append(result, *p)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].LastAccessed.After(result[j].LastAccessed)
	})
	return result
}

// Touch records an interaction with a contact
func (r *Registry) Touch(contactID string) {
	r.mu.Lock()
	p, ok := r.profiles[contactID]
	if !ok {
		r.mu.Unlock()
		return
	}
	p.LastAccessed = r.now()
	p.InteractionCount++
	snapshot := *p
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.SaveContact(toRecord(&snapshot)); err != nil {
			log.Printf("[Contacts] Touch write-through failed for %s: %v", contactID, err)
		}
	}
}

func toRecord(p *Profile) *storage.Contact {
	tags := make([]string, len(p.Platforms))
	for i, t := range p.Platforms {
		tags[i] = string(t)
	}
	platforms, _ := json.Marshal(tags)
	return &storage.Contact{
		ContactID:          p.ContactID,
		Name:               p.Name,
		Enabled:            p.Enabled,
		Platforms:          string(platforms),
		ExpiresAt:          p.ExpiresAt,
		PreferredStyle:     p.PreferredStyle,
		CustomInstructions: p.CustomInstructions,
		ResponseDelay:      p.ResponseDelay,
		MaxResponseLength:  p.MaxResponseLength,
		IncludeSignature:   p.IncludeSignature,
		Signature:          p.Signature,
		LastAccessed:       p.LastAccessed,
		InteractionCount:   p.InteractionCount,
	}
}

func fromRecord(c *storage.Contact) *Profile {
	var tags []string
	if c.Platforms != "" {
		if err := json.Unmarshal([]byte(c.Platforms), &tags); err != nil {
			log.Printf("[Contacts] Bad platform list for %s: %v", c.ContactID, err)
		}
	}
	platforms := make([]connector.Platform, 0, len(tags))
	for _, t := range tags {
		if p, err := connector.ParsePlatform(t); err == nil {
			platforms = append(platforms, p)
		}
	}
	return &Profile{
		ContactID:          c.ContactID,
		Name:               c.Name,
		Enabled:            c.Enabled,
		Platforms:          platforms,
		ExpiresAt:          c.ExpiresAt,
		PreferredStyle:     c.PreferredStyle,
		CustomInstructions: c.CustomInstructions,
		ResponseDelay:      c.ResponseDelay,
		MaxResponseLength:  c.MaxResponseLength,
		IncludeSignature:   c.IncludeSignature,
		Signature:          c.Signature,
		LastAccessed:       c.LastAccessed,
		InteractionCount:   c.InteractionCount,
	}
}
