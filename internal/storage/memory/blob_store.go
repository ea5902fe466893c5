package memory

import (
	"context"
	"fmt"
	"io"
	"sync"
)

type blob struct {
	data        []byte
	contentType string
}

// BlobStore keeps archived objects in memory and returns memory:// URIs.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string]blob
}

// NewBlobStore creates an empty BlobStore.
func NewBlobStore() *BlobStore {
	return &BlobStore{objects: make(map[string]blob)}
}

// PutObject stores the reader's content under path.
func (s *BlobStore) PutObject(_ context.Context, path, contentType string, data io.Reader) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read object data: %w", err)
	}
	s.mu.Lock()
	s.objects[path] = blob{data: b, contentType: contentType}
	s.mu.Unlock()
	return "memory://" + path, nil
}

// Object returns a copy of the stored bytes and content type.
func (s *BlobStore) Object(path string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.objects[path]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), b.data...), b.contentType, true
}

// Paths lists every stored object path.
func (s *BlobStore) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.objects))
	for p := range s.objects {
		out = append(out, p)
	}
	return out
}
