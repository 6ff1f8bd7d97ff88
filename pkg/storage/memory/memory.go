// Package memory is an in-process object store for local runs and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

type object struct {
	data     []byte
	modified time.Time
}

type Storage struct {
	mu      sync.RWMutex
	objects map[string]object
	now     func() time.Time
}

func New() *Storage {
	return &Storage{
		objects: make(map[string]object),
		now:     time.Now,
	}
}

func (s *Storage) Store(ctx context.Context, reader io.Reader, key string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	s.mu.Lock()
	s.objects[key] = object{data: data, modified: s.now()}
	s.mu.Unlock()
	return key, nil
}

func (s *Storage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("failed to get file: %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *Storage) CleanupBefore(ctx context.Context, threshold time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, obj := range s.objects {
		if obj.modified.Before(threshold) {
			delete(s.objects, key)
		}
	}
	return nil
}

// Len returns the number of stored objects.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
