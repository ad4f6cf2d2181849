package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/covehq/cove/internal/models"
)

// InMemoryStore is a mutex-guarded in-memory store. It backs tests and
// single-process demo deployments.
type InMemoryStore struct {
	mu         sync.RWMutex
	businesses map[string]*models.Business
	leads      map[string]*models.Lead
	messages   map[string][]models.Message
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		businesses: make(map[string]*models.Business),
		leads:      make(map[string]*models.Lead),
		messages:   make(map[string][]models.Message),
	}
}

func (s *InMemoryStore) CreateBusiness(b *models.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	cp := *b
	s.businesses[b.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetBusiness(id string) (*models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (s *InMemoryStore) GetBusinessByNumber(twilioNumber string) (*models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.businesses {
		if b.TwilioFromNumber == twilioNumber {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) UpdateBusiness(b *models.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businesses[b.ID]; !ok {
		return fmt.Errorf("business %s not found", b.ID)
	}
	cp := *b
	s.businesses[b.ID] = &cp
	return nil
}

func (s *InMemoryStore) ListBusinesses() ([]models.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Business, 0, len(s.businesses))
	for _, b := range s.businesses {
		out = append(out, *b)
	}
	return out, nil
}

func (s *InMemoryStore) CreateLead(l *models.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = now
	}
	if l.Answers == nil {
		l.Answers = make(map[string]string)
	}
	cp := cloneLead(l)
	s.leads[l.ID] = cp
	return nil
}

func (s *InMemoryStore) GetLead(id string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, nil
	}
	return cloneLead(l), nil
}

func (s *InMemoryStore) ActiveLead(businessID, phone string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var newest *models.Lead
	for _, l := range s.leads {
		if l.BusinessID != businessID || l.Phone != phone || l.Status != models.LeadStatusActive {
			continue
		}
		if newest == nil || l.CreatedAt.After(newest.CreatedAt) {
			newest = l
		}
	}
	if newest == nil {
		return nil, nil
	}
	return cloneLead(newest), nil
}

func (s *InMemoryStore) RecentActiveLeadByPhone(businessID, phone string, window time.Duration) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-window)
	var newest *models.Lead
	for _, l := range s.leads {
		if l.BusinessID != businessID || l.Phone != phone || l.Status != models.LeadStatusActive {
			continue
		}
		if l.CreatedAt.Before(cutoff) {
			continue
		}
		if newest == nil || l.CreatedAt.After(newest.CreatedAt) {
			newest = l
		}
	}
	if newest == nil {
		return nil, nil
	}
	return cloneLead(newest), nil
}

func (s *InMemoryStore) PatchLead(id string, patch *models.LeadPatch) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, fmt.Errorf("lead %s not found", id)
	}
	patch.Apply(l)
	return cloneLead(l), nil
}

func (s *InMemoryStore) ActiveLeads() ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Lead
	for _, l := range s.leads {
		if l.Status == models.LeadStatusActive {
			out = append(out, *cloneLead(l))
		}
	}
	return out, nil
}

func (s *InMemoryStore) RecentLeads(businessID string, limit int) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Lead
	for _, l := range s.leads {
		if l.BusinessID == businessID {
			out = append(out, *cloneLead(l))
		}
	}
	sortLeadsNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) SaveMessage(m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.messages[m.LeadID] = append(s.messages[m.LeadID], *m)
	return nil
}

func (s *InMemoryStore) MessagesByLead(leadID string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[leadID]
	out := make([]models.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}

func cloneLead(l *models.Lead) *models.Lead {
	cp := *l
	if l.Answers != nil {
		cp.Answers = make(map[string]string, len(l.Answers))
		for k, v := range l.Answers {
			cp.Answers[k] = v
		}
	}
	if l.FinishedAt != nil {
		t := *l.FinishedAt
		cp.FinishedAt = &t
	}
	return &cp
}

func sortLeadsNewestFirst(leads []models.Lead) {
	sort.Slice(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
}
