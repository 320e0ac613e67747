// Package secretstore keeps small string secrets, like the portal credentials, under string keys.
package secretstore

import (
	"errors"
	"sync"
)

var (
	ErrEmptyKey        = errors.New("empty key")
	ErrEmptyPassphrase = errors.New("empty passphrase")
	ErrInvalidFile     = errors.New("invalid secret file")
	ErrSealFailure     = errors.New("seal failure")
)

// Store saves, queries and deletes secrets.
type Store interface {
	Save(value, key string) error
	Query(key string) (string, bool, error)
	Delete(key string) error
}

// Memory is an in process Store.
type Memory struct {
	mux    sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

// Save stores value under key.
func (m *Memory) Save(value, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mux.Lock()
	defer m.mux.Unlock()
	m.values[key] = value
	return nil
}

// Query returns the value under key and whether it exists.
func (m *Memory) Query(key string) (string, bool, error) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (m *Memory) Delete(key string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	delete(m.values, key)
	return nil
}
