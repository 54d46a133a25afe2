package store

import (
	"sort"
	"sync"

	"github.com/ConnectID-SG/connectid/internal/models"
)

// InMemoryStore is a thread-safe in-memory Store used by tests and
// local development.
type InMemoryStore struct {
	mu         sync.RWMutex
	pwids      map[string]models.PWID     // keyed by name
	responders map[int64]models.Responder // keyed by chat id
	distress   map[string]models.Distress // keyed by UUID
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		pwids:      make(map[string]models.PWID),
		responders: make(map[int64]models.Responder),
		distress:   make(map[string]models.Distress),
	}
}

func (s *InMemoryStore) GetPWIDByName(name string) (*models.PWID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pwids[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *InMemoryStore) CreatePWID(p models.PWID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pwids[p.Name]; ok {
		return ErrAlreadyExists
	}
	s.pwids[p.Name] = p
	return nil
}

func (s *InMemoryStore) GetResponder(id int64) (*models.Responder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.responders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *InMemoryStore) CreateResponder(r models.Responder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responders[r.ID]; ok {
		return ErrAlreadyExists
	}
	s.responders[r.ID] = r
	return nil
}

func (s *InMemoryStore) UpdateResponder(r models.Responder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.responders[r.ID]; !ok {
		return ErrNotFound
	}
	s.responders[r.ID] = r
	return nil
}

func (s *InMemoryStore) ListAvailableResponders() ([]models.Responder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var responders []models.Responder
	for _, r := range s.responders {
		if r.IsAvailable {
			responders = append(responders, r)
		}
	}
	// Map iteration order is random; keep listings deterministic.
	sort.Slice(responders, func(i, j int) bool { return responders[i].ID < responders[j].ID })
	return responders, nil
}

func (s *InMemoryStore) CreateDistress(d models.Distress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.distress[d.ID]; ok {
		return ErrAlreadyExists
	}
	s.distress[d.ID] = cloneDistress(d)
	return nil
}

func (s *InMemoryStore) GetDistress(id string) (*models.Distress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.distress[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneDistress(d)
	return &out, nil
}

func (s *InMemoryStore) GetDistressByGroupMessageID(messageID int) (*models.Distress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, d := range s.distress {
		if d.GroupChatMessageID == messageID {
			out := cloneDistress(d)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) UpdateDistress(d models.Distress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.distress[d.ID]; !ok {
		return ErrNotFound
	}
	s.distress[d.ID] = cloneDistress(d)
	return nil
}

func (s *InMemoryStore) ListUnresolvedDistress() ([]models.Distress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var signals []models.Distress
	for _, d := range s.distress {
		if !d.IsAcknowledged && d.Responder == nil {
			signals = append(signals, cloneDistress(d))
		}
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].CreatedAt.Before(signals[j].CreatedAt) })
	return signals, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }

// cloneDistress copies the record so callers cannot mutate stored state
// through the shared responder pointer.
func cloneDistress(d models.Distress) models.Distress {
	out := d
	if d.Responder != nil {
		responder := *d.Responder
		out.Responder = &responder
	}
	return out
}
