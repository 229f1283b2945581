// internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used for development, tests, or when durability is not required.
//
// Characteristics:
//   - Records are kept in maps keyed by ID, plus insertion order for listing.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Values are cloned on the way in and out.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/game"
	"github.com/podut/hangman-server/internal/session"
)

// memory is an in-memory map-based Store implementation.
type memory struct {
	mu sync.RWMutex

	users      map[string]*User
	usernames  map[string]string // lowercase username -> user id
	sessions   map[string]*session.Session
	sessionSeq []string
	games      map[string]*game.Game
	gameSeq    []string
	guesses    map[string][]game.Guess // by game id
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() Store {
	return &memory{
		users:     make(map[string]*User),
		usernames: make(map[string]string),
		sessions:  make(map[string]*session.Session),
		games:     make(map[string]*game.Game),
		guesses:   make(map[string][]game.Guess),
	}
}

func (m *memory) CreateUser(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Username)
	if _, ok := m.usernames[key]; ok {
		return core.ErrUsernameTaken
	}
	c := *u
	m.users[u.ID] = &c
	m.usernames[key] = u.ID
	return nil
}

func (m *memory) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, core.NewNotFoundError(core.ErrUserNotFound, id)
	}
	c := *u
	return &c, nil
}

func (m *memory) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.usernames[strings.ToLower(username)]
	if !ok {
		return nil, core.NewNotFoundError(core.ErrUserNotFound, username)
	}
	c := *m.users[id]
	return &c, nil
}

func (m *memory) CreateSession(ctx context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	m.sessionSeq = append(m.sessionSeq, s.ID)
	return nil
}

func (m *memory) GetSession(ctx context.Context, id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, core.NewNotFoundError(core.ErrSessionNotFound, id)
	}
	return s.Clone(), nil
}

func (m *memory) ListSessions(ctx context.Context, f SessionFilter) ([]*session.Session, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*session.Session
	for i := len(m.sessionSeq) - 1; i >= 0; i-- {
		s := m.sessions[m.sessionSeq[i]]
		if f.UserID != "" && s.UserID != f.UserID {
			continue
		}
		if !HasStatus(f.Statuses, s.Status) {
			continue
		}
		matched = append(matched, s)
	}
	// insertion order breaks ties between equal timestamps
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	lo, hi := Page(len(matched), f.Offset, f.Limit)
	out := make([]*session.Session, 0, hi-lo)
	for _, s := range matched[lo:hi] {
		out = append(out, s.Clone())
	}
	return out, len(matched), nil
}

func (m *memory) CreateGame(ctx context.Context, s *session.Session, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return core.NewNotFoundError(core.ErrSessionNotFound, s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	m.games[g.ID] = g.Clone()
	m.gameSeq = append(m.gameSeq, g.ID)
	return nil
}

func (m *memory) GetGame(ctx context.Context, id string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, core.NewNotFoundError(core.ErrGameNotFound, id)
	}
	return g.Clone(), nil
}

func (m *memory) ListGames(ctx context.Context, f GameFilter) ([]*game.Game, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []*game.Game
	for _, id := range m.gameSeq {
		g := m.games[id]
		if f.SessionID != "" && g.SessionID != f.SessionID {
			continue
		}
		if f.UserID != "" && g.UserID != f.UserID {
			continue
		}
		if !HasStatus(f.Statuses, g.Status) {
			continue
		}
		if f.FinishedSince != nil && (g.FinishedAt == nil || g.FinishedAt.Before(*f.FinishedSince)) {
			continue
		}
		matched = append(matched, g)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })

	lo, hi := Page(len(matched), f.Offset, f.Limit)
	out := make([]*game.Game, 0, hi-lo)
	for _, g := range matched[lo:hi] {
		out = append(out, g.Clone())
	}
	return out, len(matched), nil
}

func (m *memory) SaveGame(ctx context.Context, g *game.Game, guess *game.Guess, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; !ok {
		return core.NewNotFoundError(core.ErrGameNotFound, g.ID)
	}
	if s != nil {
		if _, ok := m.sessions[s.ID]; !ok {
			return core.NewNotFoundError(core.ErrSessionNotFound, s.ID)
		}
		m.sessions[s.ID] = s.Clone()
	}
	m.games[g.ID] = g.Clone()
	if guess != nil {
		m.guesses[g.ID] = append(m.guesses[g.ID], *guess)
	}
	return nil
}

func (m *memory) SaveSession(ctx context.Context, s *session.Session, games []*game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; !ok {
		return core.NewNotFoundError(core.ErrSessionNotFound, s.ID)
	}
	for _, g := range games {
		if _, ok := m.games[g.ID]; !ok {
			return core.NewNotFoundError(core.ErrGameNotFound, g.ID)
		}
	}
	m.sessions[s.ID] = s.Clone()
	for _, g := range games {
		m.games[g.ID] = g.Clone()
	}
	return nil
}

func (m *memory) ListGuesses(ctx context.Context, gameID string) ([]game.Guess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.games[gameID]; !ok {
		return nil, core.NewNotFoundError(core.ErrGameNotFound, gameID)
	}
	return append([]game.Guess{}, m.guesses[gameID]...), nil
}

func (m *memory) Close() error { return nil }
