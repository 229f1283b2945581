// Package storetest holds behaviour tests shared by every Store
// implementation.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/game"
	"github.com/podut/hangman-server/internal/session"
	"github.com/podut/hangman-server/internal/store"
	"github.com/podut/hangman-server/internal/words"
)

var T0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Run exercises a Store created fresh for each subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	tests := map[string]func(*testing.T, store.Store){
		"Users":              testUsers,
		"Sessions":           testSessions,
		"SessionPaging":      testSessionPaging,
		"GamesAndGuesses":    testGamesAndGuesses,
		"GameFilters":        testGameFilters,
		"SaveSessionCascade": testSaveSessionCascade,
		"ReturnsCopies":      testReturnsCopies,
		"NotFound":           testNotFound,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			fn(t, s)
		})
	}
}

// NewSession builds a valid session for user at created.
func NewSession(t *testing.T, id, user string, n int, created time.Time) *session.Session {
	t.Helper()
	s, err := session.New(id, session.Params{
		UserID:         user,
		NumGames:       n,
		Difficulty:     words.DifficultyAuto,
		MaxMisses:      6,
		AllowWordGuess: true,
		DictionaryID:   "dict_en_basic",
	}, created)
	require.NoError(t, err)
	return s
}

// NewGame builds a game in s for secret and records it on s.
func NewGame(t *testing.T, s *session.Session, id, secret string, created time.Time) *game.Game {
	t.Helper()
	g, err := game.New(game.Params{
		ID:             id,
		SessionID:      s.ID,
		UserID:         s.UserID,
		Secret:         secret,
		MaxMisses:      s.MaxMisses,
		AllowWordGuess: s.AllowWordGuess,
	}, created)
	require.NoError(t, err)
	s.RecordGame(g.SecretKey)
	return g
}

func testUsers(t *testing.T, st store.Store) {
	ctx := context.Background()
	u := &store.User{ID: "u1", Username: "Alice", PasswordHash: "hash", CreatedAt: T0}
	require.NoError(t, st.CreateUser(ctx, u))

	err := st.CreateUser(ctx, &store.User{ID: "u2", Username: "alice", PasswordHash: "x", CreatedAt: T0})
	assert.ErrorIs(t, err, core.ErrUsernameTaken)

	got, err := st.GetUserByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, u, got)

	got, err = st.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Username)
}

func testSessions(t *testing.T, st store.Store) {
	ctx := context.Background()
	seed := int64(42)
	s := NewSession(t, "s1", "u1", 3, T0)
	s.Seed = &seed
	require.NoError(t, st.CreateSession(ctx, s))

	got, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s, got)

	other := NewSession(t, "s2", "u2", 1, T0.Add(time.Second))
	require.NoError(t, st.CreateSession(ctx, other))
	_, err = other.Abort(T0.Add(2*time.Second), 0)
	require.NoError(t, err)
	require.NoError(t, st.SaveSession(ctx, other, nil))

	list, total, err := st.ListSessions(ctx, store.SessionFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, list, 1)
	assert.Equal(t, "s1", list[0].ID)

	list, total, err = st.ListSessions(ctx, store.SessionFilter{Statuses: []session.Status{session.StatusAborted}})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, session.StatusAborted, list[0].Status)
	require.NotNil(t, list[0].FinishedAt)
	assert.Equal(t, T0.Add(2*time.Second), *list[0].FinishedAt)
}

func testSessionPaging(t *testing.T, st store.Store) {
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, st.CreateSession(ctx, NewSession(t, id, "u1", 1, T0.Add(time.Duration(i)*time.Minute))))
	}

	page, total, err := st.ListSessions(ctx, store.SessionFilter{UserID: "u1", Offset: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	// newest first
	assert.Equal(t, "d", page[0].ID)
	assert.Equal(t, "c", page[1].ID)

	page, _, err = st.ListSessions(ctx, store.SessionFilter{UserID: "u1", Offset: 10, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func testGamesAndGuesses(t *testing.T, st store.Store) {
	ctx := context.Background()
	s := NewSession(t, "s1", "u1", 1, T0)
	require.NoError(t, st.CreateSession(ctx, s))

	g := NewGame(t, s, "g1", "cat", T0)
	require.NoError(t, st.CreateGame(ctx, s, g))

	gotS, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, gotS.UsedWords)
	assert.Equal(t, 1, gotS.GamesCreated)

	gotG, err := st.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, g, gotG)

	guess, err := g.GuessLetter("x", T0.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, st.SaveGame(ctx, g, &guess, nil))

	guess2, err := g.GuessWord("cat", T0.Add(2*time.Second))
	require.NoError(t, err)
	require.True(t, g.Status.Terminal())
	require.True(t, s.GameFinished(T0.Add(2*time.Second)))
	require.NoError(t, st.SaveGame(ctx, g, &guess2, s))

	gotG, err = st.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, g, gotG)
	require.NotNil(t, gotG.CompositeScore)

	gotS, err = st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusFinished, gotS.Status)

	history, err := st.ListGuesses(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, []game.Guess{guess, guess2}, history)
}

func testGameFilters(t *testing.T, st store.Store) {
	ctx := context.Background()
	s1 := NewSession(t, "s1", "u1", 3, T0)
	s2 := NewSession(t, "s2", "u2", 3, T0)
	require.NoError(t, st.CreateSession(ctx, s1))
	require.NoError(t, st.CreateSession(ctx, s2))

	g1 := NewGame(t, s1, "g1", "cat", T0)
	g2 := NewGame(t, s1, "g2", "dog", T0.Add(time.Minute))
	g3 := NewGame(t, s2, "g3", "owl", T0.Add(2*time.Minute))
	require.NoError(t, st.CreateGame(ctx, s1, g1))
	require.NoError(t, st.CreateGame(ctx, s1, g2))
	require.NoError(t, st.CreateGame(ctx, s2, g3))

	_, err := g1.GuessWord("cat", T0.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, st.SaveGame(ctx, g1, nil, nil))
	require.NoError(t, g3.Abort(T0.Add(3*time.Hour)))
	require.NoError(t, st.SaveGame(ctx, g3, nil, nil))

	list, total, err := st.ListGames(ctx, store.GameFilter{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "g1", list[0].ID)
	assert.Equal(t, "g2", list[1].ID)

	list, _, err = st.ListGames(ctx, store.GameFilter{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, game.StatusAborted, list[0].Status)

	list, total, err = st.ListGames(ctx, store.GameFilter{Statuses: []game.Status{game.StatusWon, game.StatusLost, game.StatusAborted}})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	since := T0.Add(3 * time.Hour)
	list, _, err = st.ListGames(ctx, store.GameFilter{FinishedSince: &since})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "g3", list[0].ID)

	list, total, err = st.ListGames(ctx, store.GameFilter{Offset: 2, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 1)
	assert.Equal(t, "g3", list[0].ID)
}

func testSaveSessionCascade(t *testing.T, st store.Store) {
	ctx := context.Background()
	s := NewSession(t, "s1", "u1", 3, T0)
	require.NoError(t, st.CreateSession(ctx, s))
	g := NewGame(t, s, "g1", "cat", T0)
	require.NoError(t, st.CreateGame(ctx, s, g))

	require.NoError(t, g.Abort(T0.Add(time.Minute)))
	_, err := s.Abort(T0.Add(time.Minute), 1)
	require.NoError(t, err)
	require.NoError(t, st.SaveSession(ctx, s, []*game.Game{g}))

	gotS, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, s, gotS)
	gotG, err := st.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, game.StatusAborted, gotG.Status)
	assert.Nil(t, gotG.CompositeScore)

	ghost := &game.Game{ID: "missing", SessionID: "s1"}
	err = st.SaveSession(ctx, s, []*game.Game{ghost})
	assert.ErrorIs(t, err, core.ErrGameNotFound)
}

func testReturnsCopies(t *testing.T, st store.Store) {
	ctx := context.Background()
	s := NewSession(t, "s1", "u1", 2, T0)
	require.NoError(t, st.CreateSession(ctx, s))
	g := NewGame(t, s, "g1", "cat", T0)
	require.NoError(t, st.CreateGame(ctx, s, g))

	// mutations after the write must not leak in
	s.UsedWords[0] = "zzz"
	g.CorrectLetters = append(g.CorrectLetters, "q")

	got, err := st.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, got.CorrectLetters)
	got.WrongLetters = append(got.WrongLetters, "z")

	again, err := st.GetGame(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, again.WrongLetters)

	gotS, err := st.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cat"}, gotS.UsedWords)
}

func testNotFound(t *testing.T, st store.Store) {
	ctx := context.Background()
	_, err := st.GetSession(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	_, err = st.GetGame(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrGameNotFound)
	_, err = st.GetUser(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrUserNotFound)
	_, err = st.GetUserByUsername(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrUserNotFound)
	_, err = st.ListGuesses(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrGameNotFound)

	g := &game.Game{ID: "nope"}
	assert.ErrorIs(t, st.SaveGame(ctx, g, nil, nil), core.ErrGameNotFound)
}
