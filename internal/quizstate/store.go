package quizstate

import (
	"sync"

	"github.com/ichi0g0y/champion-bot/internal/localdb"
)

type dbStore struct{}

// NewDBStore keeps the document in the quiz_state row of the local database.
func NewDBStore() Store {
	return dbStore{}
}

func (dbStore) Load() ([]byte, error) {
	return localdb.LoadQuizState()
}

func (dbStore) Save(data []byte) error {
	return localdb.SaveQuizState(data)
}

// MemoryStore keeps the document in memory. FailWith makes every Save fail.
type MemoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
	err   error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryStore) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data = append([]byte(nil), data...)
	m.saves++
	return nil
}

// FailWith sets the error returned by Save; nil restores normal behavior.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Saves returns the number of successful saves.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
