// internal/session/session.go
//
// Session aggregate: a batch of N games played by one user.
// Responsibilities:
//   - Validate creation parameters (N ≥ 1, max misses ≥ 1).
//   - Guard game creation (ACTIVE only, at most N games).
//   - Keep the uniqueness ledger of issued word keys (grows only).
//   - Count finished games and auto-finish at N.
//   - Abort from ACTIVE; aborting an aborted session is a no-op.
//
// Notes:
//   - Like game.Game, a Session has no locks; the engine serializes access.

package session

import (
	"fmt"
	"time"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/words"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
	StatusAborted  Status = "ABORTED"
)

// Params are the caller-chosen settings of a session.
type Params struct {
	UserID         string
	NumGames       int
	Difficulty     words.Difficulty
	MaxMisses      int
	AllowWordGuess bool
	DictionaryID   string
	Seed           *int64
}

// Session is one batch of games.
type Session struct {
	ID string
	Params

	Status        Status
	GamesCreated  int
	GamesFinished int
	UsedWords     []string // word keys in issue order

	CreatedAt  time.Time
	FinishedAt *time.Time // set on FINISHED or ABORTED
}

// New validates p and returns an ACTIVE session with empty counters.
func New(id string, p Params, now time.Time) (*Session, error) {
	if p.NumGames < 1 {
		return nil, core.NewValidationError(core.ErrInvalidSessionParams, "num_games", "must be at least 1")
	}
	if p.MaxMisses < 1 {
		return nil, core.NewValidationError(core.ErrInvalidSessionParams, "max_misses", "must be at least 1")
	}
	if p.DictionaryID == "" {
		return nil, core.NewValidationError(core.ErrInvalidSessionParams, "dictionary_id", "is required")
	}
	if p.Difficulty == "" {
		p.Difficulty = words.DifficultyAuto
	}
	if p.Seed != nil {
		seed := *p.Seed
		p.Seed = &seed
	}
	return &Session{
		ID:        id,
		Params:    p,
		Status:    StatusActive,
		UsedWords: []string{},
		CreatedAt: now,
	}, nil
}

// CheckCanCreateGame reports why another game cannot be created, if it cannot.
func (s *Session) CheckCanCreateGame() error {
	if s.Status != StatusActive {
		return fmt.Errorf("%w: session %s is %s", core.ErrSessionNotActive, s.ID, s.Status)
	}
	if s.GamesCreated >= s.NumGames {
		return fmt.Errorf("%w: session %s already has %d of %d games", core.ErrSessionGameLimitReached, s.ID, s.GamesCreated, s.NumGames)
	}
	return nil
}

// Exclusions returns the ledger as a lookup set.
func (s *Session) Exclusions() map[string]struct{} {
	out := make(map[string]struct{}, len(s.UsedWords))
	for _, k := range s.UsedWords {
		out[k] = struct{}{}
	}
	return out
}

// RecordGame adds an issued word key to the ledger and counts the game.
func (s *Session) RecordGame(key string) {
	s.UsedWords = append(s.UsedWords, key)
	s.GamesCreated++
}

// GameFinished counts one game reaching a terminal state. It returns true
// when this made the session FINISHED. Counts on a non-active session are
// ignored.
func (s *Session) GameFinished(now time.Time) bool {
	if s.Status != StatusActive {
		return false
	}
	s.GamesFinished++
	if s.GamesFinished >= s.NumGames {
		s.Status = StatusFinished
		at := now
		s.FinishedAt = &at
		return true
	}
	return false
}

// Abort moves an ACTIVE session to ABORTED. cascaded is the number of
// in-progress games aborted along with it; they count as finished.
// changed is false when the session was already aborted.
func (s *Session) Abort(now time.Time, cascaded int) (changed bool, err error) {
	switch s.Status {
	case StatusAborted:
		return false, nil
	case StatusFinished:
		return false, fmt.Errorf("%w: session %s", core.ErrSessionAlreadyFinished, s.ID)
	}
	s.Status = StatusAborted
	s.GamesFinished += cascaded
	at := now
	s.FinishedAt = &at
	return true, nil
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	c := *s
	c.UsedWords = append([]string{}, s.UsedWords...)
	if s.Seed != nil {
		seed := *s.Seed
		c.Seed = &seed
	}
	if s.FinishedAt != nil {
		t := *s.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}
