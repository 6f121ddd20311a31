package store

import (
	"context"
	"sync"

	"github.com/quhie/Coding-Challenge-Skipli/internal/utils"
)

type record struct {
	accessCode string
	favorites  []string
}

// Memory is the process-local backend. Data is lost on restart.
type Memory struct {
	mu    sync.RWMutex
	users map[string]*record
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{users: make(map[string]*record)}
}

func (m *Memory) user(phone string) *record {
	r, ok := m.users[phone]
	if !ok {
		r = &record{}
		m.users[phone] = r
	}
	return r
}

func (m *Memory) SaveAccessCode(_ context.Context, phone, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user(phone).accessCode = code
	return nil
}

func (m *Memory) ValidateAccessCode(_ context.Context, phone, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.users[phone]
	return ok && r.accessCode != "" && r.accessCode == code, nil
}

func (m *Memory) ClearAccessCode(_ context.Context, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.users[phone]; ok {
		r.accessCode = ""
	}
	return nil
}

func (m *Memory) LikeGithubUser(_ context.Context, phone, githubUserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.user(phone)
	if !utils.ContainsString(r.favorites, githubUserID) {
		r.favorites = append(r.favorites, githubUserID)
	}
	return nil
}

func (m *Memory) FavoriteGithubUsers(_ context.Context, phone string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.users[phone]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, r.favorites...), nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
