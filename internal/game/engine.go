// internal/game/engine.go
//
// Core game engine for a single hangman round.
// Responsibilities:
//   - Create games with a masked pattern (letters hidden, everything else shown).
//   - Apply letter and word guesses with their miss penalties (1 and 2).
//   - Track state transitions: IN_PROGRESS → WON | LOST | ABORTED.
//   - Freeze the composite score and elapsed time at WON/LOST.
//
// Notes:
//   - The engine has no locks and does no I/O; callers serialize access.
//   - Every method either applies fully or returns an error with no change.
//   - Time is passed in so callers control the clock.

package game

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/normalize"
)

const (
	// Placeholder marks an unrevealed letter in a pattern.
	Placeholder = '*'

	LetterMissCost = 1
	WordMissCost   = 2
)

// New constructs a game in IN_PROGRESS.
// Non-letter characters of the secret (spaces, hyphens, apostrophes, digits)
// are revealed from the start; only letters need guessing.
func New(p Params, now time.Time) (*Game, error) {
	secret := normalize.Compose(p.Secret)
	if secret == "" {
		return nil, core.NewValidationError(core.ErrInvalidWord, "secret", "must not be empty")
	}
	if normalize.CountLetters(secret) == 0 {
		return nil, core.NewValidationError(core.ErrInvalidWord, "secret", "must contain at least one letter")
	}
	if p.MaxMisses < 1 {
		return nil, core.NewValidationError(core.ErrInvalidSessionParams, "max_misses", "must be at least 1")
	}

	g := &Game{
		ID:              p.ID,
		SessionID:       p.SessionID,
		UserID:          p.UserID,
		Secret:          secret,
		SecretKey:       normalize.Key(secret),
		MaxMisses:       p.MaxMisses,
		AllowWordGuess:  p.AllowWordGuess,
		CorrectLetters:  []string{},
		WrongLetters:    []string{},
		RemainingMisses: p.MaxMisses,
		Status:          StatusInProgress,
		CreatedAt:       now,
	}
	g.Pattern = g.render()
	return g, nil
}

// Apply dispatches a validated move.
func (g *Game) Apply(m Move, now time.Time) (Guess, error) {
	switch mv := m.(type) {
	case LetterGuess:
		return g.GuessLetter(mv.Value, now)
	case WordGuess:
		return g.GuessWord(mv.Value, now)
	default:
		return Guess{}, core.NewValidationError(core.ErrInvalidGuess, "move", fmt.Sprintf("unsupported type %T", m))
	}
}

// GuessLetter reveals every position of letter, or charges one miss.
//
// Rules:
//   - Game must be IN_PROGRESS.
//   - letter must be exactly one letter after trimming.
//   - A letter whose key was already guessed (right or wrong) is rejected
//     and not counted.
func (g *Game) GuessLetter(letter string, now time.Time) (Guess, error) {
	if err := g.requireInProgress(); err != nil {
		return Guess{}, err
	}
	value := normalize.Compose(letter)
	r, size := utf8.DecodeRuneInString(value)
	if size == 0 || size != len(value) || !normalize.IsLetter(r) {
		return Guess{}, core.NewValidationError(core.ErrInvalidGuess, "letter", "must be a single letter")
	}
	key := normalize.Key(value)
	if g.HasGuessed(key) {
		return Guess{}, fmt.Errorf("%w: %q", core.ErrDuplicateGuess, value)
	}

	guess := Guess{
		GameID:    g.ID,
		Index:     g.TotalGuesses,
		Kind:      KindLetter,
		Value:     value,
		Key:       key,
		Correct:   g.secretHasLetter(key),
		CreatedAt: now,
	}
	g.TotalGuesses++

	if guess.Correct {
		g.CorrectLetters = append(g.CorrectLetters, key)
		g.Pattern = g.render()
		if g.solved() {
			g.finish(StatusWon, now)
		}
	} else {
		g.WrongLetters = append(g.WrongLetters, key)
		g.charge(LetterMissCost, now)
	}

	guess.PatternAfter = g.Pattern
	return guess, nil
}

// GuessWord compares word with the whole secret. A match reveals everything
// and wins; a miss costs WordMissCost.
func (g *Game) GuessWord(word string, now time.Time) (Guess, error) {
	if err := g.requireInProgress(); err != nil {
		return Guess{}, err
	}
	if !g.AllowWordGuess {
		return Guess{}, core.ErrWordGuessNotAllowed
	}
	value := normalize.Compose(word)
	if value == "" {
		return Guess{}, core.NewValidationError(core.ErrInvalidGuess, "word", "must not be empty")
	}
	key := normalize.Key(value)

	guess := Guess{
		GameID:    g.ID,
		Index:     g.TotalGuesses,
		Kind:      KindWord,
		Value:     value,
		Key:       key,
		Correct:   key == g.SecretKey,
		CreatedAt: now,
	}
	g.TotalGuesses++

	if guess.Correct {
		g.finish(StatusWon, now)
	} else {
		g.WrongWordGuesses++
		g.charge(WordMissCost, now)
	}

	guess.PatternAfter = g.Pattern
	return guess, nil
}

// Abort ends an in-progress game without a score.
func (g *Game) Abort(now time.Time) error {
	if err := g.requireInProgress(); err != nil {
		return err
	}
	g.finish(StatusAborted, now)
	return nil
}

// HasGuessed reports whether a letter key was already tried.
func (g *Game) HasGuessed(key string) bool {
	for _, k := range g.CorrectLetters {
		if k == key {
			return true
		}
	}
	for _, k := range g.WrongLetters {
		if k == key {
			return true
		}
	}
	return false
}

// Length is the number of characters in the secret.
func (g *Game) Length() int { return utf8.RuneCountInString(g.Secret) }

// Clone returns a deep copy that shares nothing with g.
func (g *Game) Clone() *Game {
	c := *g
	c.CorrectLetters = append([]string{}, g.CorrectLetters...)
	c.WrongLetters = append([]string{}, g.WrongLetters...)
	if g.CompositeScore != nil {
		s := *g.CompositeScore
		c.CompositeScore = &s
	}
	if g.FinishedAt != nil {
		t := *g.FinishedAt
		c.FinishedAt = &t
	}
	return &c
}

func (g *Game) requireInProgress() error {
	if g.Status.Terminal() {
		return fmt.Errorf("%w: game %s is %s", core.ErrGameFinished, g.ID, g.Status)
	}
	return nil
}

// charge subtracts a miss penalty, clamping at zero. Reaching zero loses.
func (g *Game) charge(cost int, now time.Time) {
	g.RemainingMisses -= cost
	if g.RemainingMisses <= 0 {
		g.RemainingMisses = 0
		g.finish(StatusLost, now)
	}
}

// finish performs the single terminal transition.
func (g *Game) finish(status Status, now time.Time) {
	g.Status = status
	at := now
	g.FinishedAt = &at
	g.ElapsedSeconds = now.Sub(g.CreatedAt).Seconds()
	if g.ElapsedSeconds < 0 {
		g.ElapsedSeconds = 0
	}
	if status.Scored() && g.CompositeScore == nil {
		s := Score(ScoreInput{
			Won:              status == StatusWon,
			TotalGuesses:     g.TotalGuesses,
			WrongLetters:     len(g.WrongLetters),
			WrongWordGuesses: g.WrongWordGuesses,
			ElapsedSeconds:   g.ElapsedSeconds,
			Length:           g.Length(),
		})
		g.CompositeScore = &s
	}
	g.Pattern = g.render()
}

// render builds the pattern from the secret and the correct letters.
// A won game shows the whole secret.
func (g *Game) render() string {
	var b strings.Builder
	for _, r := range g.Secret {
		switch {
		case !normalize.IsLetter(r), g.Status == StatusWon, g.isRevealed(r):
			b.WriteRune(r)
		default:
			b.WriteRune(Placeholder)
		}
	}
	return b.String()
}

func (g *Game) isRevealed(r rune) bool {
	key := normalize.KeyRune(r)
	for _, k := range g.CorrectLetters {
		if k == key {
			return true
		}
	}
	return false
}

// solved reports whether every letter of the secret is revealed.
func (g *Game) solved() bool {
	for _, r := range g.Secret {
		if normalize.IsLetter(r) && !g.isRevealed(r) {
			return false
		}
	}
	return true
}

func (g *Game) secretHasLetter(key string) bool {
	for _, r := range g.Secret {
		if normalize.IsLetter(r) && normalize.KeyRune(r) == key {
			return true
		}
	}
	return false
}
