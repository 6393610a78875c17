package storage

import (
	"context"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// MemoryStorage keeps objects in memory. It backs uploads when object
// storage is disabled and in tests.
type MemoryStorage struct {
	// BaseURL prefixes the generated download URLs
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStorage creates an empty MemoryStorage
func NewMemoryStorage(baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "http://localhost/objects"
	}
	return &MemoryStorage{BaseURL: baseURL, objects: make(map[string]memoryObject)}
}

// Put stores a copy of data
func (s *MemoryStorage) Put(_ context.Context, key string, data []byte, contentType string) error {
	if key == "" {
		return ErrKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: append([]byte(nil), data...), contentType: contentType}
	return nil
}

// PresignGet returns BaseURL/key with an expiry query
func (s *MemoryStorage) PresignGet(_ context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, ErrKeyRequired
	}
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return "", time.Time{}, ErrObjectNotFound
	}
	if expiresIn <= 0 {
		expiresIn = DefaultPresignExpiry
	}
	expiresAt := time.Now().Add(expiresIn)
	u := s.BaseURL + "/" + url.PathEscape(key) + "?expires=" + strconv.FormatInt(expiresAt.Unix(), 10)
	return u, expiresAt, nil
}

// Delete removes key
func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// CheckBucket always succeeds
func (s *MemoryStorage) CheckBucket(context.Context) error {
	return nil
}

// Get returns a stored object
func (s *MemoryStorage) Get(key string) (Object, []byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[key]
	if !ok {
		return Object{}, nil, false
	}
	return Object{Key: key, ContentType: o.contentType, Size: int64(len(o.data))}, o.data, true
}

var _ ObjectStorage = (*MemoryStorage)(nil)
