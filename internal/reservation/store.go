package reservation

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/parcela/internal/models"
)

// ErrWizardNotFound is returned for unknown, expired or foreign wizards.
var ErrWizardNotFound = errors.New("reservation wizard not found")

// WizardStore keeps in-progress wizards in memory. Wizards idle for longer
// than the TTL are dropped by Sweep.
type WizardStore struct {
	mu      sync.Mutex
	wizards map[string]*Wizard
	ttl     time.Duration
	now     func() time.Time
}

// NewWizardStore creates a store with the given idle TTL.
func NewWizardStore(ttl time.Duration, now func() time.Time) *WizardStore {
	if now == nil {
		now = time.Now
	}
	return &WizardStore{wizards: make(map[string]*Wizard), ttl: ttl, now: now}
}

// Create starts a wizard for userID.
func (s *WizardStore) Create(userID string, preselected *models.LotWithZone) *Wizard {
	w := NewWizard(uuid.NewString(), userID, preselected, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.wizards[w.ID()] = w
	return w
}

// Get returns the wizard if it exists, belongs to userID and has not idled out.
func (s *WizardStore) Get(id, userID string) (*Wizard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wizards[id]
	if !ok || w.UserID() != userID {
		return nil, ErrWizardNotFound
	}
	now := s.now()
	if s.ttl > 0 && now.Sub(w.IdleSince()) > s.ttl {
		delete(s.wizards, id)
		return nil, ErrWizardNotFound
	}
	w.Touch(now)
	return w, nil
}

// Delete forgets a wizard.
func (s *WizardStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wizards, id)
}

// Sweep drops idle wizards and returns how many were removed.
func (s *WizardStore) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, w := range s.wizards {
		if now.Sub(w.IdleSince()) > s.ttl {
			delete(s.wizards, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live wizards.
func (s *WizardStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wizards)
}
