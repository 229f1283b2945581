// internal/game/types.go
//
// Core type definitions for the hangman game engine.
// Defines:
//   - Status: lifecycle of a single game (IN_PROGRESS → WON | LOST | ABORTED).
//   - Game: state for one round of a session.
//   - Guess: immutable, append-only log entry for an accepted guess.
//   - Move: tagged guess payload, either LetterGuess or WordGuess.

package game

import (
	"strings"
	"time"

	"github.com/podut/hangman-server/internal/core"
)

// Status is the lifecycle state of a game.
type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusWon        Status = "WON"
	StatusLost       Status = "LOST"
	StatusAborted    Status = "ABORTED"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusAborted
}

// Scored reports whether a game in this status carries a composite score.
func (s Status) Scored() bool {
	return s == StatusWon || s == StatusLost
}

// GuessKind tells letter guesses from whole-word guesses.
type GuessKind string

const (
	KindLetter GuessKind = "LETTER"
	KindWord   GuessKind = "WORD"
)

// Game holds the state of a single hangman round.
type Game struct {
	ID        string
	SessionID string
	UserID    string // owner of the session, copied for read-side scans

	Secret    string // display form, original casing and diacritics
	SecretKey string // normalized comparison key

	MaxMisses      int
	AllowWordGuess bool

	Pattern          string   // Secret with Placeholder for each unrevealed letter
	CorrectLetters   []string // letter keys, in guess order
	WrongLetters     []string // letter keys, in guess order
	RemainingMisses  int
	WrongWordGuesses int
	TotalGuesses     int

	Status         Status
	CompositeScore *float64 // nil until WON or LOST, never recomputed
	ElapsedSeconds float64  // frozen at the terminal transition

	CreatedAt  time.Time
	FinishedAt *time.Time
}

// Params are the inputs needed to start a game.
type Params struct {
	ID             string
	SessionID      string
	UserID         string
	Secret         string
	MaxMisses      int
	AllowWordGuess bool
}

// Guess is one accepted attempt. Index starts at 0 and is gapless per game.
type Guess struct {
	GameID       string
	Index        int
	Kind         GuessKind
	Value        string // as submitted, trimmed
	Key          string // normalized
	Correct      bool
	PatternAfter string
	CreatedAt    time.Time
}

// Move is a validated guess payload.
type Move interface {
	isMove()
}

// LetterGuess asks whether a single letter occurs in the secret.
type LetterGuess struct{ Value string }

// WordGuess attempts the whole secret at once.
type WordGuess struct{ Value string }

func (LetterGuess) isMove() {}
func (WordGuess) isMove()   {}

// ParseMove builds a Move from a request that carries exactly one of letter
// or word.
func ParseMove(letter, word string) (Move, error) {
	letter, word = strings.TrimSpace(letter), strings.TrimSpace(word)
	switch {
	case letter != "" && word != "":
		return nil, core.NewValidationError(core.ErrInvalidGuess, "payload", "must carry either a letter or a word, not both")
	case letter != "":
		return LetterGuess{Value: letter}, nil
	case word != "":
		return WordGuess{Value: word}, nil
	default:
		return nil, core.NewValidationError(core.ErrInvalidGuess, "payload", "must carry a letter or a word")
	}
}
