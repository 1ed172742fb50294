package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// Object is a stored file as kept by Memory.
type Object struct {
	ContentType string
	Data        []byte
}

// MemoryBaseURL prefixes public objects kept by Memory.
const MemoryBaseURL = "https://storage.memory.invalid"

// Memory keeps objects in process. It backs the memory driver and the API tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
	public  map[string]bool
	now     func() time.Time
}

func NewMemory(publicBuckets ...string) *Memory {
	public := make(map[string]bool, len(publicBuckets))
	for _, b := range publicBuckets {
		public[b] = true
	}
	return &Memory{objects: make(map[string]Object), public: public, now: time.Now}
}

func (m *Memory) Upload(ctx context.Context, bucket, path, contentType string, body io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	m.mu.Lock()
	m.objects[bucket+"/"+path] = Object{ContentType: contentType, Data: buf.Bytes()}
	m.mu.Unlock()

	if m.public[bucket] {
		return fmt.Sprintf("%s/%s/%s", MemoryBaseURL, bucket, path), nil
	}
	return path, nil
}

func (m *Memory) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	if _, ok := m.Get(bucket, path); !ok {
		return "", fmt.Errorf("object %s/%s not found", bucket, path)
	}
	q := url.Values{"expires": {fmt.Sprint(m.now().Add(ttl).Unix())}}
	return fmt.Sprintf("memory://%s/%s?%s", bucket, path, q.Encode()), nil
}

func (m *Memory) Get(bucket, path string) (Object, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[bucket+"/"+path]
	return obj, ok
}
