package blob

import (
	"context"
	"sync"
	"time"

	"github.com/joseph-ayodele/statements-tracker/internal/entity"
)

// MemoryStore is an in-process store used by tests and the CLI's dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]entity.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: map[string]entity.Document{}}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (entity.Document, error) {
	if err := ctx.Err(); err != nil {
		return entity.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return entity.Document{}, notFound("get", key, nil)
	}
	doc.Data = append([]byte(nil), doc.Data...)
	return doc, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := cleanKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = entity.Document{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  time.Now().UTC(),
		Data:        append([]byte(nil), data...),
	}
	return nil
}

// Exists reports whether key is already staged.
func (s *MemoryStore) Exists(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[key]
	return ok
}
