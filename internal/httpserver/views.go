package httpserver

import (
	"time"

	"github.com/podut/hangman-server/internal/game"
	"github.com/podut/hangman-server/internal/session"
	"github.com/podut/hangman-server/internal/store"
	"github.com/podut/hangman-server/internal/words"
)

type userView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserView(u *store.User) userView {
	return userView{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

type sessionView struct {
	ID             string         `json:"session_id"`
	UserID         string         `json:"user_id"`
	NumGames       int            `json:"num_games"`
	Difficulty     string         `json:"difficulty"`
	MaxMisses      int            `json:"max_misses"`
	AllowWordGuess bool           `json:"allow_word_guess"`
	DictionaryID   string         `json:"dictionary_id"`
	Seed           *int64         `json:"seed,omitempty"`
	Status         session.Status `json:"status"`
	GamesCreated   int            `json:"games_created"`
	GamesFinished  int            `json:"games_finished"`
	CreatedAt      time.Time      `json:"created_at"`
	FinishedAt     *time.Time     `json:"finished_at,omitempty"`
}

func newSessionView(s *session.Session) sessionView {
	return sessionView{
		ID:             s.ID,
		UserID:         s.UserID,
		NumGames:       s.NumGames,
		Difficulty:     string(s.Difficulty),
		MaxMisses:      s.MaxMisses,
		AllowWordGuess: s.AllowWordGuess,
		DictionaryID:   s.DictionaryID,
		Seed:           s.Seed,
		Status:         s.Status,
		GamesCreated:   s.GamesCreated,
		GamesFinished:  s.GamesFinished,
		CreatedAt:      s.CreatedAt,
		FinishedAt:     s.FinishedAt,
	}
}

// gameView hides the secret while the game is in progress.
type gameView struct {
	ID               string      `json:"game_id"`
	SessionID        string      `json:"session_id"`
	Status           game.Status `json:"status"`
	Pattern          string      `json:"pattern"`
	Length           int         `json:"length"`
	MaxMisses        int         `json:"max_misses"`
	RemainingMisses  int         `json:"remaining_misses"`
	CorrectLetters   []string    `json:"correct_letters"`
	WrongLetters     []string    `json:"wrong_letters"`
	WrongWordGuesses int         `json:"wrong_word_guesses"`
	TotalGuesses     int         `json:"total_guesses"`
	AllowWordGuess   bool        `json:"allow_word_guess"`
	Secret           string      `json:"secret,omitempty"`
	CompositeScore   *float64    `json:"composite_score,omitempty"`
	ElapsedSeconds   float64     `json:"elapsed_seconds"`
	CreatedAt        time.Time   `json:"created_at"`
	FinishedAt       *time.Time  `json:"finished_at,omitempty"`
}

func newGameView(g *game.Game) gameView {
	v := gameView{
		ID:               g.ID,
		SessionID:        g.SessionID,
		Status:           g.Status,
		Pattern:          g.Pattern,
		Length:           g.Length(),
		MaxMisses:        g.MaxMisses,
		RemainingMisses:  g.RemainingMisses,
		CorrectLetters:   nonNil(g.CorrectLetters),
		WrongLetters:     nonNil(g.WrongLetters),
		WrongWordGuesses: g.WrongWordGuesses,
		TotalGuesses:     g.TotalGuesses,
		AllowWordGuess:   g.AllowWordGuess,
		CompositeScore:   g.CompositeScore,
		ElapsedSeconds:   g.ElapsedSeconds,
		CreatedAt:        g.CreatedAt,
		FinishedAt:       g.FinishedAt,
	}
	if g.Status.Terminal() {
		v.Secret = g.Secret
	}
	return v
}

type guessView struct {
	Index        int            `json:"index"`
	Type         game.GuessKind `json:"type"`
	Value        string         `json:"value"`
	Key          string         `json:"key"`
	Correct      bool           `json:"correct"`
	PatternAfter string         `json:"pattern_after"`
	CreatedAt    time.Time      `json:"created_at"`
}

func newGuessView(g game.Guess) guessView {
	return guessView{
		Index:        g.Index,
		Type:         g.Kind,
		Value:        g.Value,
		Key:          g.Key,
		Correct:      g.Correct,
		PatternAfter: g.PatternAfter,
		CreatedAt:    g.CreatedAt,
	}
}

type dictionaryView struct {
	ID           string         `json:"dictionary_id"`
	Name         string         `json:"name"`
	Language     string         `json:"language"`
	WordCount    int            `json:"word_count"`
	ByDifficulty map[string]int `json:"by_difficulty"`
}

func newDictionaryView(d *words.Dictionary) dictionaryView {
	by := map[string]int{}
	for _, diff := range []words.Difficulty{words.DifficultyEasy, words.DifficultyNormal, words.DifficultyHard} {
		by[string(diff)] = d.Count(diff)
	}
	return dictionaryView{
		ID:           d.ID,
		Name:         d.Name,
		Language:     d.Language,
		WordCount:    d.Count(words.DifficultyAuto),
		ByDifficulty: by,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mapSlice[T, V any](in []T, f func(T) V) []V {
	out := make([]V, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
