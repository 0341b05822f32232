// Package memstore keeps uploaded objects in memory for development and tests.
package memstore

import (
	"context"
	"io"
	"sort"
	"sync"
)

type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

type Store struct {
	mu      sync.RWMutex
	objects map[string]Object
	// FailKeys makes Put fail for the listed keys.
	FailKeys map[string]error
}

func New() *Store {
	return &Store{objects: map[string]Object{}, FailKeys: map[string]error{}}
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, _ int64, contentType string) error {
	s.mu.RLock()
	failure := s.FailKeys[key]
	s.mu.RUnlock()
	if failure != nil {
		return failure
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[key] = Object{Key: key, ContentType: contentType, Data: data}
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}

func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
