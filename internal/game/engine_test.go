package game

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podut/hangman-server/internal/core"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newGame(t *testing.T, secret string, maxMisses int, allowWord bool) *Game {
	t.Helper()
	g, err := New(Params{ID: "g1", SessionID: "s1", UserID: "u1", Secret: secret, MaxMisses: maxMisses, AllowWordGuess: allowWord}, t0)
	require.NoError(t, err)
	return g
}

func TestNewMasksOnlyLetters(t *testing.T) {
	tests := []struct {
		secret  string
		pattern string
	}{
		{"cat", "***"},
		{"ice-cream", "***-*****"},
		{"rock 'n roll", "**** '* ****"},
		{"dicționar", "*********"},
		{"r2d2", "*2*2"},
	}
	for _, tt := range tests {
		t.Run(tt.secret, func(t *testing.T) {
			g := newGame(t, tt.secret, 6, true)
			assert.Equal(t, tt.pattern, g.Pattern)
			assert.Equal(t, StatusInProgress, g.Status)
			assert.Equal(t, 6, g.RemainingMisses)
			assert.Nil(t, g.CompositeScore)
			assert.Nil(t, g.FinishedAt)
		})
	}
}

func TestDecomposedSecretIsComposed(t *testing.T) {
	g := newGame(t, "pa\u0306r", 3, true)
	assert.Equal(t, "păr", g.Secret)
	assert.Equal(t, "***", g.Pattern)
	assert.Equal(t, 3, g.Length())

	composed := newGame(t, "păr", 3, true)
	assert.Equal(t, composed.SecretKey, g.SecretKey)
}

func TestDecomposedLetterGuess(t *testing.T) {
	g := newGame(t, "păr", 3, true)
	guess, err := g.GuessLetter("a\u0306", t0)
	require.NoError(t, err)
	assert.True(t, guess.Correct)
	assert.Equal(t, "ă", guess.Value)
	assert.Equal(t, "*ă*", g.Pattern)

	_, err = g.GuessLetter("ă", t0)
	assert.ErrorIs(t, err, core.ErrDuplicateGuess)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New(Params{Secret: "  ", MaxMisses: 6}, t0)
	assert.ErrorIs(t, err, core.ErrInvalidWord)

	_, err = New(Params{Secret: "--- 42", MaxMisses: 6}, t0)
	assert.ErrorIs(t, err, core.ErrInvalidWord)

	_, err = New(Params{Secret: "cat", MaxMisses: 0}, t0)
	assert.ErrorIs(t, err, core.ErrInvalidSessionParams)
}

func TestWinByLetters(t *testing.T) {
	g := newGame(t, "cat", 6, true)

	for i, l := range []string{"c", "a", "t"} {
		guess, err := g.GuessLetter(l, t0)
		require.NoError(t, err)
		assert.Equal(t, i, guess.Index)
		assert.True(t, guess.Correct)
		assert.Equal(t, KindLetter, guess.Kind)
	}

	assert.Equal(t, StatusWon, g.Status)
	assert.Equal(t, "cat", g.Pattern)
	assert.Equal(t, 3, g.TotalGuesses)
	require.NotNil(t, g.CompositeScore)
	assert.InDelta(t, 976.0, *g.CompositeScore, 1e-9)
	require.NotNil(t, g.FinishedAt)
	assert.Equal(t, t0, *g.FinishedAt)
}

func TestScoreIncludesElapsedTime(t *testing.T) {
	g := newGame(t, "cat", 6, true)
	_, _ = g.GuessLetter("c", t0)
	_, _ = g.GuessLetter("a", t0.Add(5*time.Second))
	_, err := g.GuessLetter("t", t0.Add(10*time.Second))
	require.NoError(t, err)

	assert.Equal(t, 10.0, g.ElapsedSeconds)
	assert.InDelta(t, 974.0, *g.CompositeScore, 1e-9)
}

func TestLoseByLetters(t *testing.T) {
	g := newGame(t, "cat", 2, true)

	guess, err := g.GuessLetter("x", t0)
	require.NoError(t, err)
	assert.False(t, guess.Correct)
	assert.Equal(t, 1, g.RemainingMisses)

	_, err = g.GuessLetter("y", t0)
	require.NoError(t, err)

	assert.Equal(t, StatusLost, g.Status)
	assert.Equal(t, 0, g.RemainingMisses)
	assert.Equal(t, "***", g.Pattern)
	assert.Equal(t, []string{"x", "y"}, g.WrongLetters)
	// 0 - 20 - 10 - 0 - 0 + 6
	assert.InDelta(t, -24.0, *g.CompositeScore, 1e-9)
}

func TestDuplicateLetterRejected(t *testing.T) {
	g := newGame(t, "cat", 6, true)
	_, err := g.GuessLetter("x", t0)
	require.NoError(t, err)
	_, err = g.GuessLetter("c", t0)
	require.NoError(t, err)

	before := g.Clone()
	for _, l := range []string{"x", "X", "c", "C", " c "} {
		_, err = g.GuessLetter(l, t0)
		assert.ErrorIs(t, err, core.ErrDuplicateGuess, l)
	}
	assert.Equal(t, before, g)
}

func TestDiacriticLettersMatchByKey(t *testing.T) {
	g := newGame(t, "încercare", 6, true)

	guess, err := g.GuessLetter("i", t0)
	require.NoError(t, err)
	assert.True(t, guess.Correct)
	assert.Equal(t, "î********", g.Pattern)

	_, err = g.GuessLetter("Î", t0)
	assert.ErrorIs(t, err, core.ErrDuplicateGuess)

	g2 := newGame(t, "dicționar", 6, true)
	_, err = g2.GuessLetter("ș", t0)
	require.NoError(t, err)
	_, err = g2.GuessLetter("T", t0)
	require.NoError(t, err)
	assert.Equal(t, "***ț*****", g2.Pattern)
}

func TestInvalidLetters(t *testing.T) {
	g := newGame(t, "cat", 6, true)
	for _, in := range []string{"", "  ", "ab", "1", "-", "ca"} {
		_, err := g.GuessLetter(in, t0)
		assert.ErrorIs(t, err, core.ErrInvalidGuess, "input %q", in)
	}
	assert.Equal(t, 0, g.TotalGuesses)
}

func TestWordGuess(t *testing.T) {
	t.Run("correct word wins and reveals", func(t *testing.T) {
		g := newGame(t, "Încercare", 6, true)
		guess, err := g.GuessWord("incercare", t0)
		require.NoError(t, err)
		assert.True(t, guess.Correct)
		assert.Equal(t, KindWord, guess.Kind)
		assert.Equal(t, StatusWon, g.Status)
		assert.Equal(t, "Încercare", g.Pattern)
		assert.Equal(t, 1, g.TotalGuesses)
	})

	t.Run("wrong word costs two", func(t *testing.T) {
		g := newGame(t, "cat", 6, true)
		_, err := g.GuessWord("dog", t0)
		require.NoError(t, err)
		assert.Equal(t, 4, g.RemainingMisses)
		assert.Equal(t, 1, g.WrongWordGuesses)
		assert.Empty(t, g.WrongLetters)
		assert.Equal(t, StatusInProgress, g.Status)
	})

	t.Run("penalty clamps at zero", func(t *testing.T) {
		g := newGame(t, "cat", 1, true)
		_, err := g.GuessWord("dog", t0)
		require.NoError(t, err)
		assert.Equal(t, 0, g.RemainingMisses)
		assert.Equal(t, StatusLost, g.Status)
		// 0 - 10 - 0 - 40 - 0 + 6
		assert.InDelta(t, -44.0, *g.CompositeScore, 1e-9)
	})

	t.Run("disallowed", func(t *testing.T) {
		g := newGame(t, "cat", 6, false)
		_, err := g.GuessWord("cat", t0)
		assert.ErrorIs(t, err, core.ErrWordGuessNotAllowed)
		assert.Equal(t, 0, g.TotalGuesses)
	})

	t.Run("empty word", func(t *testing.T) {
		g := newGame(t, "cat", 6, true)
		_, err := g.GuessWord("   ", t0)
		assert.ErrorIs(t, err, core.ErrInvalidGuess)
	})
}

func TestTerminalGamesRejectEverything(t *testing.T) {
	g := newGame(t, "cat", 6, false)
	_, err := g.GuessLetter("c", t0)
	require.NoError(t, err)
	require.NoError(t, g.Abort(t0.Add(3*time.Second)))

	assert.Equal(t, StatusAborted, g.Status)
	assert.Nil(t, g.CompositeScore)
	assert.Equal(t, 3.0, g.ElapsedSeconds)
	assert.Equal(t, "c**", g.Pattern)

	before := g.Clone()
	_, err = g.GuessLetter("a", t0)
	assert.ErrorIs(t, err, core.ErrGameFinished)
	// status is checked before the word-guess flag
	_, err = g.GuessWord("cat", t0)
	assert.ErrorIs(t, err, core.ErrGameFinished)
	assert.ErrorIs(t, g.Abort(t0), core.ErrGameFinished)
	assert.Equal(t, before, g)
}

func TestApplyAndParseMove(t *testing.T) {
	m, err := ParseMove(" a ", "")
	require.NoError(t, err)
	assert.Equal(t, LetterGuess{Value: "a"}, m)

	m, err = ParseMove("", "cat")
	require.NoError(t, err)
	assert.Equal(t, WordGuess{Value: "cat"}, m)

	_, err = ParseMove("a", "cat")
	assert.ErrorIs(t, err, core.ErrInvalidGuess)
	_, err = ParseMove("", " ")
	assert.ErrorIs(t, err, core.ErrInvalidGuess)

	g := newGame(t, "cat", 6, true)
	guess, err := g.Apply(LetterGuess{Value: "a"}, t0)
	require.NoError(t, err)
	assert.Equal(t, "*a*", guess.PatternAfter)
	guess, err = g.Apply(WordGuess{Value: "cat"}, t0)
	require.NoError(t, err)
	assert.Equal(t, 1, guess.Index)
	assert.Equal(t, StatusWon, g.Status)
}

func TestGuessSequenceKeepsCountersConsistent(t *testing.T) {
	g := newGame(t, "programare", 6, true)
	seq := []string{"e", "z", "r", "a", "q", "p", "o", "g", "m"}
	accepted := 0
	for _, l := range seq {
		if g.Status.Terminal() {
			break
		}
		before := g.RemainingMisses
		guess, err := g.GuessLetter(l, t0)
		require.NoError(t, err)
		accepted++

		assert.Equal(t, accepted, g.TotalGuesses)
		assert.Equal(t, utf8.RuneCountInString(g.Secret), utf8.RuneCountInString(g.Pattern))
		assert.LessOrEqual(t, g.RemainingMisses, before)
		assert.Equal(t, g.MaxMisses-len(g.WrongLetters)-2*g.WrongWordGuesses, g.RemainingMisses)
		assert.Equal(t, g.Pattern, guess.PatternAfter)
	}
	assert.Equal(t, StatusWon, g.Status)
	assert.Equal(t, "programare", g.Pattern)
}

func TestCloneIsIndependent(t *testing.T) {
	g := newGame(t, "cat", 6, true)
	_, _ = g.GuessLetter("c", t0)
	_, _ = g.GuessWord("cat", t0)

	c := g.Clone()
	c.CorrectLetters[0] = "z"
	*c.CompositeScore = 1
	*c.FinishedAt = t0.Add(time.Hour)

	assert.Equal(t, "c", g.CorrectLetters[0])
	assert.NotEqual(t, 1.0, *g.CompositeScore)
	assert.Equal(t, t0, *g.FinishedAt)
}

func TestScore(t *testing.T) {
	assert.InDelta(t, 976.0, Score(ScoreInput{Won: true, TotalGuesses: 3, Length: 3}), 1e-9)
	assert.InDelta(t, -65.0, Score(ScoreInput{TotalGuesses: 5, WrongLetters: 5, ElapsedSeconds: 50, Length: 10}), 1e-9)
}
