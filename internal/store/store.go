// internal/store/store.go
//
// Persistence boundary for sessions, games, guesses and user accounts.
//
// Contract:
//   - Records go in and come out as copies; callers never share memory
//     with the store.
//   - Multi-record writes (game creation, guess recording, session abort)
//     apply atomically: either every record changes or none does.
//   - Lists return one page plus the total number of matching records.
//
// Implementations: NewMemoryStore (this package) and sqlstore (SQLite,
// PostgreSQL, MySQL).

package store

import (
	"context"
	"time"

	"github.com/podut/hangman-server/internal/game"
	"github.com/podut/hangman-server/internal/session"
)

// User is a registered player.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// SessionFilter selects sessions. Zero fields match everything; Limit 0
// means no limit. Results are ordered newest first.
type SessionFilter struct {
	UserID   string
	Statuses []session.Status
	Offset   int
	Limit    int
}

// GameFilter selects games. Zero fields match everything; Limit 0 means no
// limit. Results are ordered oldest first.
type GameFilter struct {
	SessionID     string
	UserID        string
	Statuses      []game.Status
	FinishedSince *time.Time // inclusive
	Offset        int
	Limit         int
}

// Store is the persistence interface used by the engine, stats and auth.
type Store interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	// GetUserByUsername matches case-insensitively.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	CreateSession(ctx context.Context, s *session.Session) error
	GetSession(ctx context.Context, id string) (*session.Session, error)
	ListSessions(ctx context.Context, f SessionFilter) ([]*session.Session, int, error)

	// CreateGame inserts g and saves s (its ledger and counters) together.
	CreateGame(ctx context.Context, s *session.Session, g *game.Game) error
	GetGame(ctx context.Context, id string) (*game.Game, error)
	ListGames(ctx context.Context, f GameFilter) ([]*game.Game, int, error)

	// SaveGame updates g, appends guess when non-nil and updates s when
	// non-nil, all together.
	SaveGame(ctx context.Context, g *game.Game, guess *game.Guess, s *session.Session) error
	// SaveSession updates s together with any games changed alongside it.
	SaveSession(ctx context.Context, s *session.Session, games []*game.Game) error
	ListGuesses(ctx context.Context, gameID string) ([]game.Guess, error)

	Close() error
}

// HasStatus reports whether statuses is empty or contains st.
func HasStatus[T comparable](statuses []T, st T) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Page applies offset and limit to n items, returning the slice bounds.
func Page(n, offset, limit int) (lo, hi int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	hi = n
	if limit > 0 && offset+limit < n {
		hi = offset + limit
	}
	return offset, hi
}
