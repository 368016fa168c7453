package blob

import (
	"context"
	"fmt"
	"sync"
)

// MemStore keeps objects in memory. Test double for Store.
type MemStore struct {
	mu      sync.Mutex
	objects map[string][]byte

	// Err, when set, is returned by every Upload.
	Err error
}

func NewMemStore() *MemStore {
	return &MemStore{objects: make(map[string][]byte)}
}

func (s *MemStore) Upload(_ context.Context, bucket, path string, data []byte, _ string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := bucket + "/" + path
	s.objects[key] = append([]byte(nil), data...)
	return fmt.Sprintf("https://storage.local/%s", key), nil
}

func (s *MemStore) Object(bucket, path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[bucket+"/"+path]
	return data, ok
}
