package kvstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkorchagin/onboardchat/internal/common"
)

// MemoryStore is a mutex-guarded in-process Store. It is used in
// development mode and in tests; a single instance gives the same
// per-key serialization guarantees as the persistent backends.
type MemoryStore struct {
	mu   sync.Mutex
	data map[Namespace]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Namespace]map[string][]byte)}
}

func (s *MemoryStore) Update(ctx context.Context, ns Namespace, key string, fn UpdateFn) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current []byte
	if records, ok := s.data[ns]; ok {
		if v, ok := records[key]; ok {
			// fn gets a copy so a retained slice cannot alias stored bytes
			current = append([]byte(nil), v...)
		}
	}

	next, remove, err := fn(current)
	if err != nil {
		return err
	}

	switch {
	case remove:
		delete(s.data[ns], key)
	case next != nil:
		if s.data[ns] == nil {
			s.data[ns] = make(map[string][]byte)
		}
		s.data[ns][key] = append([]byte(nil), next...)
	}

	return nil
}

func (s *MemoryStore) Get(ctx context.Context, ns Namespace, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if records, ok := s.data[ns]; ok {
		if v, ok := records[key]; ok {
			return append([]byte(nil), v...), nil
		}
	}
	return nil, common.ErrorNotFound
}

func (s *MemoryStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data[ns], key)
	return nil
}
