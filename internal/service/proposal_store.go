package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
)

const proposalKeyPrefix = "timetable:proposal:"

// ProposalStore keeps generated proposals until they are applied or expire.
type ProposalStore interface {
	Save(ctx context.Context, proposal dto.TimetableProposal) error
	Get(ctx context.Context, id string) (*dto.TimetableProposal, bool, error)
	Delete(ctx context.Context, id string) error
	// Purge drops every stored proposal.
	Purge(ctx context.Context) error
}

// memoryProposalStore is the process-local store used when Redis is not configured.
type memoryProposalStore struct {
	mu    sync.RWMutex
	items map[string]dto.TimetableProposal
	now   func() time.Time
}

// NewMemoryProposalStore constructs an in-process proposal store.
func NewMemoryProposalStore() ProposalStore {
	return &memoryProposalStore{
		items: make(map[string]dto.TimetableProposal),
		now:   time.Now,
	}
}

func (s *memoryProposalStore) Save(_ context.Context, proposal dto.TimetableProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
	s.evictLocked()
	return nil
}

func (s *memoryProposalStore) Get(ctx context.Context, id string) (*dto.TimetableProposal, bool, error) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if s.now().After(proposal.ExpiresAt) {
		_ = s.Delete(ctx, id)
		return nil, false, nil
	}
	return &proposal, true, nil
}

func (s *memoryProposalStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
	return nil
}

func (s *memoryProposalStore) Purge(_ context.Context) error {
	s.mu.Lock()
	s.items = make(map[string]dto.TimetableProposal)
	s.mu.Unlock()
	return nil
}

func (s *memoryProposalStore) evictLocked() {
	now := s.now()
	for id, proposal := range s.items {
		if now.After(proposal.ExpiresAt) {
			delete(s.items, id)
		}
	}
}

// cacheProposalStore shares proposals between API replicas through Redis.
type cacheProposalStore struct {
	cache *CacheService
	now   func() time.Time
}

// NewCacheProposalStore stores proposals through the cache service. The entry TTL follows the
// proposal's ExpiresAt.
func NewCacheProposalStore(cache *CacheService) ProposalStore {
	return &cacheProposalStore{cache: cache, now: time.Now}
}

func (s *cacheProposalStore) Save(ctx context.Context, proposal dto.TimetableProposal) error {
	ttl := proposal.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	return s.cache.Set(ctx, proposalKeyPrefix+proposal.ProposalID, proposal, ttl)
}

func (s *cacheProposalStore) Get(ctx context.Context, id string) (*dto.TimetableProposal, bool, error) {
	var proposal dto.TimetableProposal
	hit, err := s.cache.Get(ctx, proposalKeyPrefix+id, &proposal)
	if err != nil || !hit {
		return nil, false, err
	}
	return &proposal, true, nil
}

func (s *cacheProposalStore) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, proposalKeyPrefix+id)
}

func (s *cacheProposalStore) Purge(ctx context.Context) error {
	return s.cache.Invalidate(ctx, proposalKeyPrefix+"*")
}
