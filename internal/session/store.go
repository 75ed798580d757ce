package session

import (
	"context"
	"sync"
)

// Store хранит состояние диалога по chat id пользователя.
// Get возвращает Idle{}, если состояния нет.
type Store interface {
	Get(ctx context.Context, chatID int64) (State, error)
	Set(ctx context.Context, chatID int64, s State) error
	Clear(ctx context.Context, chatID int64) error
}

// MemoryStore держит состояния в памяти процесса (режим без Redis и тесты).
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (State, error) {
	m.mu.RLock()
	raw, ok := m.states[chatID]
	m.mu.RUnlock()
	if !ok {
		return Idle{}, nil
	}
	return Decode(raw)
}

// Set хранит сериализованную форму, чтобы поведение совпадало с Redis.
func (m *MemoryStore) Set(_ context.Context, chatID int64, s State) error {
	if _, idle := s.(Idle); idle || s == nil {
		return m.Clear(context.Background(), chatID)
	}
	raw, err := Encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.states[chatID] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	delete(m.states, chatID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
