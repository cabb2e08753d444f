package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore implements Store with maps. Thread-safe; used by tests and
// single-process deployments without Postgres.
type InMemoryStore struct {
	rules    map[uuid.UUID]*Rule
	byCode   map[string]uuid.UUID
	versions map[uuid.UUID][]*Version
	mu       sync.RWMutex
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		rules:    make(map[uuid.UUID]*Rule),
		byCode:   make(map[string]uuid.UUID),
		versions: make(map[uuid.UUID][]*Version),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, rule *Rule, initial *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}
	if _, exists := s.byCode[rule.Code]; exists {
		return fmt.Errorf("rule with code %s already exists", rule.Code)
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.rules[rule.ID] = rule.Clone()
	s.byCode[rule.Code] = rule.ID
	s.versions[rule.ID] = []*Version{initial}
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, id uuid.UUID) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, ok := s.rules[id]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return rule.Clone(), nil
}

func (s *InMemoryStore) GetByCode(ctx context.Context, code string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, fmt.Errorf("rule code %s: %w", code, ErrNotFound)
	}
	return s.rules[id].Clone(), nil
}

func (s *InMemoryStore) List(ctx context.Context, f Filter) ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Rule
	for _, rule := range s.rules {
		if f.Type != nil && rule.Type != *f.Type {
			continue
		}
		if f.IsActive != nil && rule.IsActive != *f.IsActive {
			continue
		}
		if f.Category != "" && rule.Category != f.Category {
			continue
		}
		out = append(out, rule.Clone())
	}
	sortRules(out)
	return out, nil
}

func (s *InMemoryStore) ListActive(ctx context.Context) ([]*Rule, error) {
	active := true
	return s.List(ctx, Filter{IsActive: &active})
}

func (s *InMemoryStore) Update(ctx context.Context, rule *Rule, expectedVersion int, next *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rules[rule.ID]
	if !ok {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrNotFound)
	}
	if existing.CurrentVersion != expectedVersion {
		return &ConflictError{
			RuleID:          rule.ID,
			ExpectedVersion: expectedVersion,
			CurrentVersion:  existing.CurrentVersion,
		}
	}

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()
	if rule.Code != existing.Code {
		delete(s.byCode, existing.Code)
		s.byCode[rule.Code] = rule.ID
	}
	s.rules[rule.ID] = rule.Clone()
	s.versions[rule.ID] = append(s.versions[rule.ID], next)
	return nil
}

func (s *InMemoryStore) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[id]
	if !ok {
		return fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	rule.IsActive = active
	rule.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) Versions(ctx context.Context, ruleID uuid.UUID) ([]*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.versions[ruleID]
	if !ok {
		return nil, fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	out := append([]*Version(nil), versions...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].VersionNumber > out[j].VersionNumber
	})
	return out, nil
}

func (s *InMemoryStore) GetVersion(ctx context.Context, ruleID uuid.UUID, versionNumber int) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.versions[ruleID] {
		if v.VersionNumber == versionNumber {
			return v, nil
		}
	}
	return nil, fmt.Errorf("rule %s version %d: %w", ruleID, versionNumber, ErrNotFound)
}

func (s *InMemoryStore) CountByCodePrefix(ctx context.Context, prefix string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for code := range s.byCode {
		if strings.HasPrefix(code, prefix) {
			count++
		}
	}
	return count, nil
}

// sortRules orders by priority ascending, ties broken by code.
func sortRules(rs []*Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority < rs[j].Priority
		}
		return rs[i].Code < rs[j].Code
	})
}
