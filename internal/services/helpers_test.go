package services

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func shopZone() *time.Location {
	return time.FixedZone("ART", -3*60*60)
}

type memoryStorage struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	setErr  error
	sets    int
	deletes []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{data: make(map[string]string)}
}

func (m *memoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memoryStorage) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, key)
	delete(m.data, key)
	return nil
}

func (m *memoryStorage) value(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}
