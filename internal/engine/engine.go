// internal/engine/engine.go
//
// Session manager and game orchestration.
// Responsibilities:
//   - Create sessions (dictionary, per-user and per-session limits).
//   - Create games from the word supply with per-session uniqueness and
//     seed-derived, reproducible picks.
//   - Apply guesses and aborts under per-entity locks and persist each
//     change (game, guess log, session counters) in one store write.
//   - Cascade session aborts to in-progress games.
//
// Locking:
//   - One mutex per session and per game, taken session before game.
//   - One mutex per user while counting active sessions on creation.
//   - Stats reads never lock.

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/game"
	"github.com/podut/hangman-server/internal/session"
	"github.com/podut/hangman-server/internal/store"
	"github.com/podut/hangman-server/internal/words"
)

// WordSupply provides dictionaries and unused words.
type WordSupply interface {
	Get(id string) (*words.Dictionary, error)
	PickUnusedWord(ctx context.Context, dictID string, difficulty words.Difficulty, exclude map[string]struct{}, seed *uint64) (words.Word, error)
}

// Options tune engine limits and inject the clock and id source.
type Options struct {
	DefaultDictionary        string
	MaxActiveSessionsPerUser int // 0 disables the limit
	MaxGamesPerSession       int // 0 disables the limit
	Now                      func() time.Time
	NewID                    func() string
}

// Engine coordinates sessions and games over a Store.
type Engine struct {
	store store.Store
	words WordSupply
	opts  Options

	userLocks    *keyedMutex
	sessionLocks *keyedMutex
	gameLocks    *keyedMutex
}

// GuessResult is the outcome of an accepted guess.
type GuessResult struct {
	Game    *game.Game
	Guess   game.Guess
	Session *session.Session // non-nil when the guess ended the game
}

func New(st store.Store, ws WordSupply, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = core.NewID
	}
	return &Engine{
		store:        st,
		words:        ws,
		opts:         opts,
		userLocks:    newKeyedMutex(),
		sessionLocks: newKeyedMutex(),
		gameLocks:    newKeyedMutex(),
	}
}

// --- sessions ---

// CreateSession validates p and stores a new ACTIVE session.
func (e *Engine) CreateSession(ctx context.Context, p session.Params) (*session.Session, error) {
	if p.UserID == "" {
		return nil, core.NewValidationError(core.ErrInvalidSessionParams, "user_id", "is required")
	}
	if p.DictionaryID == "" {
		p.DictionaryID = e.opts.DefaultDictionary
	}
	d, err := words.ParseDifficulty(string(p.Difficulty))
	if err != nil {
		return nil, err
	}
	p.Difficulty = d
	if e.opts.MaxGamesPerSession > 0 && p.NumGames > e.opts.MaxGamesPerSession {
		return nil, core.NewValidationError(core.ErrInvalidSessionParams, "num_games",
			fmt.Sprintf("must be at most %d", e.opts.MaxGamesPerSession))
	}
	dict, err := e.words.Get(p.DictionaryID)
	if err != nil || !dict.Active {
		return nil, core.NewValidationError(core.ErrInvalidSessionParams, "dictionary_id",
			fmt.Sprintf("%q is not an available dictionary", p.DictionaryID))
	}

	s, err := session.New(e.opts.NewID(), p, e.opts.Now())
	if err != nil {
		return nil, err
	}

	unlock := e.userLocks.Lock(p.UserID)
	defer unlock()
	if limit := e.opts.MaxActiveSessionsPerUser; limit > 0 {
		_, active, err := e.store.ListSessions(ctx, store.SessionFilter{
			UserID:   p.UserID,
			Statuses: []session.Status{session.StatusActive},
			Limit:    1,
		})
		if err != nil {
			return nil, err
		}
		if active >= limit {
			return nil, fmt.Errorf("%w: user %s has %d active sessions", core.ErrMaxSessionsExceeded, p.UserID, active)
		}
	}
	if err := e.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}

	log.Info().
		Str("session", s.ID).
		Str("user", s.UserID).
		Int("num_games", s.NumGames).
		Str("difficulty", string(s.Difficulty)).
		Str("dictionary", s.DictionaryID).
		Bool("seeded", s.Seed != nil).
		Msg("session created")
	return s, nil
}

func (e *Engine) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return e.store.GetSession(ctx, id)
}

// ListSessions returns a user's sessions, newest first, with the total count.
func (e *Engine) ListSessions(ctx context.Context, userID string, offset, limit int) ([]*session.Session, int, error) {
	return e.store.ListSessions(ctx, store.SessionFilter{UserID: userID, Offset: offset, Limit: limit})
}

// AbortSession aborts an ACTIVE session and every in-progress game in it.
// Aborting an ABORTED session returns it unchanged.
func (e *Engine) AbortSession(ctx context.Context, id string) (*session.Session, error) {
	unlock := e.sessionLocks.Lock(id)
	defer unlock()

	s, err := e.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status == session.StatusAborted {
		return s, nil
	}
	if s.Status == session.StatusFinished {
		return nil, fmt.Errorf("%w: session %s", core.ErrSessionAlreadyFinished, id)
	}

	running, _, err := e.store.ListGames(ctx, store.GameFilter{
		SessionID: id,
		Statuses:  []game.Status{game.StatusInProgress},
	})
	if err != nil {
		return nil, err
	}

	now := e.opts.Now()
	aborted := make([]*game.Game, 0, len(running))
	for _, g := range running {
		unlockGame := e.gameLocks.Lock(g.ID)
		defer unlockGame()
		// reload under the game lock
		g, err := e.store.GetGame(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		if g.Status.Terminal() {
			continue
		}
		if err := g.Abort(now); err != nil {
			return nil, err
		}
		aborted = append(aborted, g)
	}

	if _, err := s.Abort(now, len(aborted)); err != nil {
		return nil, err
	}
	if err := e.store.SaveSession(ctx, s, aborted); err != nil {
		return nil, err
	}

	log.Info().
		Str("session", s.ID).
		Str("user", s.UserID).
		Int("games_aborted", len(aborted)).
		Msg("session aborted")
	return s, nil
}

// OnGameTerminal reconciles the session's finished-game count with the
// terminal games it holds and finishes the session at N. Guess and abort
// paths already do this in the same write; calling it again is harmless.
func (e *Engine) OnGameTerminal(ctx context.Context, sessionID, gameID string) (*session.Session, error) {
	unlock := e.sessionLocks.Lock(sessionID)
	defer unlock()

	s, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if g.SessionID != sessionID {
		return nil, core.NewNotFoundError(core.ErrGameNotFound, gameID)
	}
	if !g.Status.Terminal() || s.Status != session.StatusActive {
		return s, nil
	}

	_, finished, err := e.store.ListGames(ctx, store.GameFilter{
		SessionID: sessionID,
		Statuses:  []game.Status{game.StatusWon, game.StatusLost, game.StatusAborted},
		Limit:     1,
	})
	if err != nil {
		return nil, err
	}
	if finished <= s.GamesFinished {
		return s, nil
	}
	now := e.opts.Now()
	for s.GamesFinished < finished && s.Status == session.StatusActive {
		s.GameFinished(now)
	}
	if err := e.store.SaveSession(ctx, s, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// --- games ---

// CreateGame draws an unused word for the session and starts a game.
func (e *Engine) CreateGame(ctx context.Context, sessionID string) (*game.Game, error) {
	unlock := e.sessionLocks.Lock(sessionID)
	defer unlock()

	s, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.CheckCanCreateGame(); err != nil {
		return nil, err
	}

	var seed *uint64
	if sub, ok := s.SubSeed(); ok {
		seed = &sub
	}
	w, err := e.words.PickUnusedWord(ctx, s.DictionaryID, s.Difficulty, s.Exclusions(), seed)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}

	g, err := game.New(game.Params{
		ID:             e.opts.NewID(),
		SessionID:      s.ID,
		UserID:         s.UserID,
		Secret:         w.Text,
		MaxMisses:      s.MaxMisses,
		AllowWordGuess: s.AllowWordGuess,
	}, e.opts.Now())
	if err != nil {
		return nil, err
	}
	s.RecordGame(g.SecretKey)

	if err := e.store.CreateGame(ctx, s, g); err != nil {
		return nil, err
	}

	log.Info().
		Str("session", s.ID).
		Str("game", g.ID).
		Int("index", s.GamesCreated-1).
		Msg("game created")
	return g, nil
}

func (e *Engine) GetGame(ctx context.Context, id string) (*game.Game, error) {
	return e.store.GetGame(ctx, id)
}

// ListGames returns one page of a session's games in creation order.
func (e *Engine) ListGames(ctx context.Context, sessionID string, offset, limit int) ([]*game.Game, int, error) {
	if _, err := e.store.GetSession(ctx, sessionID); err != nil {
		return nil, 0, err
	}
	return e.store.ListGames(ctx, store.GameFilter{SessionID: sessionID, Offset: offset, Limit: limit})
}

// GuessHistory returns the accepted guesses of a game in order.
func (e *Engine) GuessHistory(ctx context.Context, gameID string) ([]game.Guess, error) {
	return e.store.ListGuesses(ctx, gameID)
}

func (e *Engine) GuessLetter(ctx context.Context, gameID, letter string) (GuessResult, error) {
	return e.SubmitGuess(ctx, gameID, game.LetterGuess{Value: letter})
}

func (e *Engine) GuessWord(ctx context.Context, gameID, word string) (GuessResult, error) {
	return e.SubmitGuess(ctx, gameID, game.WordGuess{Value: word})
}

// SubmitGuess applies m to the game. When the guess ends the game the
// session counters are updated in the same store write.
func (e *Engine) SubmitGuess(ctx context.Context, gameID string, m game.Move) (GuessResult, error) {
	var res GuessResult
	err := e.withGame(ctx, gameID, func(g *game.Game, now time.Time) (*game.Guess, error) {
		guess, err := g.Apply(m, now)
		if err != nil {
			return nil, err
		}
		res.Guess = guess
		return &guess, nil
	}, func(g *game.Game, s *session.Session) {
		res.Game, res.Session = g, s
	})
	return res, err
}

// AbortGame ends an in-progress game without a score.
func (e *Engine) AbortGame(ctx context.Context, gameID string) (*game.Game, error) {
	var out *game.Game
	err := e.withGame(ctx, gameID, func(g *game.Game, now time.Time) (*game.Guess, error) {
		return nil, g.Abort(now)
	}, func(g *game.Game, _ *session.Session) {
		out = g
	})
	return out, err
}

// withGame runs mutate on a freshly loaded game under the session and game
// locks and persists the result. done receives the saved game and, when the
// game became terminal, the updated session.
func (e *Engine) withGame(
	ctx context.Context,
	gameID string,
	mutate func(g *game.Game, now time.Time) (*game.Guess, error),
	done func(g *game.Game, s *session.Session),
) error {
	peek, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}

	unlockSession := e.sessionLocks.Lock(peek.SessionID)
	defer unlockSession()
	unlockGame := e.gameLocks.Lock(gameID)
	defer unlockGame()

	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return err
	}
	now := e.opts.Now()
	guess, err := mutate(g, now)
	if err != nil {
		return err
	}

	var s *session.Session
	if g.Status.Terminal() {
		s, err = e.store.GetSession(ctx, g.SessionID)
		if err != nil {
			return err
		}
		s.GameFinished(now)
	}
	if err := e.store.SaveGame(ctx, g, guess, s); err != nil {
		return err
	}

	if s != nil {
		e.logTerminal(g, s)
	}
	done(g, s)
	return nil
}

func (e *Engine) logTerminal(g *game.Game, s *session.Session) {
	ev := log.Info().
		Str("session", s.ID).
		Str("game", g.ID).
		Str("user", g.UserID).
		Str("status", string(g.Status)).
		Int("total_guesses", g.TotalGuesses).
		Float64("elapsed_seconds", g.ElapsedSeconds)
	if g.CompositeScore != nil {
		ev = ev.Float64("score", *g.CompositeScore)
	}
	ev.Msg("game finished")
	if s.Status == session.StatusFinished {
		log.Info().Str("session", s.ID).Int("games", s.GamesFinished).Msg("session finished")
	}
}
