package slot

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Persister saves pads outside the process. The store calls it on every
// mutation; failures are logged and never roll back the in-memory edit.
type Persister interface {
	LoadAll() (map[ID]Parameters, []ID, error)
	Save(id ID, p Parameters) error
	Delete(id ID) error
	SaveOrder(order []ID) error
}

// Store owns the parameters of every pad on the board.
type Store struct {
	mu        sync.RWMutex
	slots     []Parameters
	order     []ID
	persister Persister
	listeners []func(ID)
	logger    *slog.Logger
}

// NewStore creates a board of count pads, all at defaults.
func NewStore(count int) *Store {
	if count <= 0 {
		count = DefaultCount
	}
	s := &Store{
		slots:  make([]Parameters, count),
		order:  make([]ID, count),
		logger: slog.With("component", "slot-store"),
	}
	for i := range s.slots {
		s.slots[i] = Defaults()
		s.order[i] = ID(i)
	}
	return s
}

// Attach loads saved pads from p and keeps p up to date afterwards.
// Saved ids outside the board are ignored.
func (s *Store) Attach(p Persister) error {
	saved, order, err := p.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load saved slots: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.persister = p
	loaded := 0
	for id, params := range saved {
		if !s.valid(id) {
			s.logger.Warn("Ignoring saved slot outside the board", slog.Int("slot", int(id)))
			continue
		}
		if err := params.Validate(); err != nil {
			s.logger.Warn("Ignoring invalid saved slot", slog.Int("slot", int(id)), slog.Any("error", err))
			continue
		}
		s.slots[id] = params
		loaded++
	}
	if normalized, ok := s.normalizeOrder(order); ok {
		s.order = normalized
	}
	s.logger.Info("Loaded saved slots", slog.Int("count", loaded))
	return nil
}

// Count returns the number of pads.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// IDs returns every pad id in index order.
func (s *Store) IDs() []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]ID, len(s.slots))
	for i := range ids {
		ids[i] = ID(i)
	}
	return ids
}

// Get returns a pad's parameters.
func (s *Store) Get(id ID) (Parameters, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.valid(id) {
		return Parameters{}, fmt.Errorf("%w: %d", ErrUnknownSlot, id)
	}
	return s.slots[id], nil
}

// All returns a copy of every pad's parameters, indexed by id.
func (s *Store) All() []Parameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.slots)
}

// Set merges patch into the pad and returns the result.
func (s *Store) Set(id ID, patch Patch) (Parameters, error) {
	s.mu.Lock()
	if !s.valid(id) {
		s.mu.Unlock()
		return Parameters{}, fmt.Errorf("%w: %d", ErrUnknownSlot, id)
	}
	next := patch.Apply(s.slots[id])
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return Parameters{}, err
	}
	s.slots[id] = next
	persister := s.persister
	s.mu.Unlock()

	if persister != nil {
		if err := persister.Save(id, next); err != nil {
			s.logger.Error("Failed to persist slot", slog.Int("slot", int(id)), slog.Any("error", err))
		}
	}
	s.notify(id)
	return next, nil
}

// Reset returns a pad to its defaults.
func (s *Store) Reset(id ID) error {
	s.mu.Lock()
	if !s.valid(id) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownSlot, id)
	}
	s.slots[id] = Defaults()
	persister := s.persister
	s.mu.Unlock()

	if persister != nil {
		if err := persister.Delete(id); err != nil {
			s.logger.Error("Failed to delete persisted slot", slog.Int("slot", int(id)), slog.Any("error", err))
		}
	}
	s.notify(id)
	return nil
}

// Order returns the button order.
func (s *Store) Order() []ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// SetOrder replaces the button order. It must be a permutation of the board's ids.
func (s *Store) SetOrder(order []ID) error {
	s.mu.Lock()
	normalized, ok := s.normalizeOrder(order)
	if !ok {
		s.mu.Unlock()
		return &ParameterError{Field: "order", Reason: "not a permutation of the board's slots"}
	}
	s.order = normalized
	persister := s.persister
	s.mu.Unlock()

	if persister != nil {
		if err := persister.SaveOrder(normalized); err != nil {
			s.logger.Error("Failed to persist button order", slog.Any("error", err))
		}
	}
	return nil
}

// Subscribe registers fn to be called after every change to a pad.
func (s *Store) Subscribe(fn func(ID)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Store) notify(id ID) {
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(id)
	}
}

func (s *Store) valid(id ID) bool {
	return id >= 0 && int(id) < len(s.slots)
}

func (s *Store) normalizeOrder(order []ID) ([]ID, bool) {
	if len(order) != len(s.slots) {
		return nil, false
	}
	seen := make([]bool, len(s.slots))
	for _, id := range order {
		if !s.valid(id) || seen[id] {
			return nil, false
		}
		seen[id] = true
	}
	return slices.Clone(order), true
}
