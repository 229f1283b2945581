package stats

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/game"
	"github.com/podut/hangman-server/internal/store"
	"github.com/podut/hangman-server/internal/store/storetest"
)

var now = storetest.T0.Add(40 * 24 * time.Hour)

type played struct {
	user, session, id string
	status            game.Status
	finishedAgo       time.Duration
	guesses, wrong    int
	score             float64
}

func seedGames(t *testing.T, st store.Store, games ...played) {
	t.Helper()
	ctx := context.Background()
	for _, p := range games {
		s, err := st.GetSession(ctx, p.session)
		if core.IsNotFound(err) {
			s = storetest.NewSession(t, p.session, p.user, 10, storetest.T0)
			require.NoError(t, st.CreateSession(ctx, s))
		} else {
			require.NoError(t, err)
		}

		finished := now.Add(-p.finishedAgo)
		g := storetest.NewGame(t, s, p.id, "word"+p.id, finished.Add(-30*time.Second))
		g.Status = p.status
		g.TotalGuesses = p.guesses
		g.WrongLetters = make([]string, p.wrong)
		g.ElapsedSeconds = 30
		g.FinishedAt = &finished
		if p.status.Scored() {
			score := p.score
			g.CompositeScore = &score
		}
		require.NoError(t, st.CreateGame(ctx, s, g))
	}
}

func fixture(t *testing.T) (*Aggregator, store.Store) {
	t.Helper()
	st := store.NewMemoryStore()
	seedGames(t, st,
		played{"alice", "sa1", "a1", game.StatusWon, 40 * 24 * time.Hour, 4, 1, 950},
		played{"alice", "sa2", "a2", game.StatusWon, 2 * 24 * time.Hour, 5, 2, 900},
		played{"alice", "sa2", "a3", game.StatusAborted, time.Hour, 1, 0, 0},
		played{"bob", "sb", "b1", game.StatusLost, 3 * time.Hour, 8, 6, -60},
		played{"bob", "sb", "b2", game.StatusWon, 5 * 24 * time.Hour, 3, 0, 980},
		played{"carol", "sc", "c1", game.StatusAborted, 2 * time.Hour, 2, 1, 0},
	)
	return New(st, func() time.Time { return now }), st
}

func TestParsePeriodAndMetric(t *testing.T) {
	for in, want := range map[string]Period{"": PeriodAll, "all": PeriodAll, "1d": Period1d, "7d": Period7d, "30d": Period30d} {
		got, err := ParsePeriod(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePeriod("week")
	assert.ErrorIs(t, err, core.ErrInvalidPeriod)
	assert.True(t, core.IsValidation(err))

	for in, want := range map[string]Metric{"": MetricCompositeScore, "win_rate": MetricWinRate, "avg_guesses": MetricAvgGuesses, "composite_score": MetricCompositeScore} {
		got, err := ParseMetric(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err = ParseMetric("total_games")
	assert.ErrorIs(t, err, core.ErrInvalidMetric)
}

func TestPeriodSince(t *testing.T) {
	assert.Nil(t, PeriodAll.Since(now))
	assert.Equal(t, now.Add(-24*time.Hour), *Period1d.Since(now))
	assert.Equal(t, now.Add(-7*24*time.Hour), *Period7d.Since(now))
	assert.Equal(t, now.Add(-30*24*time.Hour), *Period30d.Since(now))
}

func TestUserStats(t *testing.T) {
	agg, _ := fixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		user   string
		period Period
		want   Summary
	}{
		{
			name:   "all time",
			user:   "alice",
			period: PeriodAll,
			want: Summary{
				GamesPlayed: 2, GamesWon: 2, GamesAborted: 1,
				WinRate: 1, AvgGuesses: 4.5, AvgWrongLetters: 1.5, AvgElapsedSeconds: 30,
				AvgScore: 925, TotalScore: 1850, BestScore: 950,
			},
		},
		{
			name:   "last 30 days",
			user:   "alice",
			period: Period30d,
			want: Summary{
				GamesPlayed: 1, GamesWon: 1, GamesAborted: 1,
				WinRate: 1, AvgGuesses: 5, AvgWrongLetters: 2, AvgElapsedSeconds: 30,
				AvgScore: 900, TotalScore: 900, BestScore: 900,
			},
		},
		{
			name:   "only aborted in window",
			user:   "alice",
			period: Period1d,
			want:   Summary{GamesAborted: 1},
		},
		{
			name:   "mixed results",
			user:   "bob",
			period: Period7d,
			want: Summary{
				GamesPlayed: 2, GamesWon: 1, GamesLost: 1,
				WinRate: 0.5, AvgGuesses: 5.5, AvgWrongLetters: 3, AvgElapsedSeconds: 30,
				AvgScore: 460, TotalScore: 920, BestScore: 980,
			},
		},
		{
			name:   "unknown user",
			user:   "nobody",
			period: PeriodAll,
			want:   Summary{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := agg.UserStats(ctx, tt.user, tt.period)
			require.NoError(t, err)
			assert.Equal(t, tt.user, got.UserID)
			assert.Equal(t, tt.period, got.Period)
			assert.Equal(t, tt.want, got.Summary)
		})
	}
}

func TestGlobalStats(t *testing.T) {
	agg, _ := fixture(t)
	ctx := context.Background()

	got, err := agg.GlobalStats(ctx, PeriodAll)
	require.NoError(t, err)
	assert.Equal(t, 2, got.DistinctPlayers)
	assert.Equal(t, 4, got.TotalSessions)
	assert.Equal(t, 4, got.GamesPlayed)
	assert.Equal(t, 3, got.GamesWon)
	assert.Equal(t, 1, got.GamesLost)
	assert.Equal(t, 2, got.GamesAborted)
	assert.InDelta(t, 0.75, got.WinRate, 1e-9)
	assert.InDelta(t, 2770.0, got.TotalScore, 1e-9)
	assert.InDelta(t, 980.0, got.BestScore, 1e-9)

	got, err = agg.GlobalStats(ctx, Period1d)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DistinctPlayers)
	assert.Equal(t, 3, got.TotalSessions)
	assert.Equal(t, 1, got.GamesPlayed)
	assert.Equal(t, 2, got.GamesAborted)
}

func TestLeaderboardMetrics(t *testing.T) {
	agg, st := fixture(t)
	ctx := context.Background()
	require.NoError(t, st.CreateUser(ctx, &store.User{ID: "alice", Username: "Alice", PasswordHash: "x", CreatedAt: storetest.T0}))

	ranking := func(m Metric, p Period) []string {
		entries, err := agg.Leaderboard(ctx, m, p, 0)
		require.NoError(t, err)
		var ids []string
		for i, e := range entries {
			assert.Equal(t, i+1, e.Rank)
			ids = append(ids, e.UserID)
		}
		return ids
	}

	assert.Equal(t, []string{"alice", "bob"}, ranking(MetricCompositeScore, PeriodAll))
	assert.Equal(t, []string{"alice", "bob"}, ranking(MetricWinRate, PeriodAll))
	assert.Equal(t, []string{"alice", "bob"}, ranking(MetricAvgGuesses, PeriodAll))
	assert.Equal(t, []string{"bob", "alice"}, ranking(MetricCompositeScore, Period30d))
	assert.Equal(t, []string{"bob"}, ranking(MetricWinRate, Period1d))

	entries, err := agg.Leaderboard(ctx, MetricCompositeScore, PeriodAll, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alice", entries[0].Username)
	assert.InDelta(t, 1850.0, entries[0].Value, 1e-9)
	assert.Equal(t, 2, entries[0].GamesPlayed)
}

func TestLeaderboardTieBreaks(t *testing.T) {
	st := store.NewMemoryStore()
	seedGames(t, st,
		// same total, more games wins
		played{"few", "s1", "f1", game.StatusWon, time.Hour, 3, 0, 1000},
		played{"many", "s2", "m1", game.StatusWon, 2 * time.Hour, 3, 0, 500},
		played{"many", "s2", "m2", game.StatusLost, 3 * time.Hour, 3, 0, 500},
		// same total and count, earlier first game wins
		played{"late", "s3", "l1", game.StatusWon, time.Hour, 3, 0, 200},
		played{"early", "s4", "e1", game.StatusWon, 5 * time.Hour, 3, 0, 200},
		// identical, user id decides
		played{"zed", "s5", "z1", game.StatusWon, 9 * time.Hour, 3, 0, 100},
		played{"amy", "s6", "y1", game.StatusWon, 9 * time.Hour, 3, 0, 100},
	)
	agg := New(st, func() time.Time { return now })

	entries, err := agg.Leaderboard(context.Background(), MetricCompositeScore, PeriodAll, 500)
	require.NoError(t, err)
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.UserID)
	}
	assert.Equal(t, []string{"many", "few", "early", "late", "amy", "zed"}, ids)
}

func TestLeaderboardExcludesAbortOnlyPlayers(t *testing.T) {
	agg, _ := fixture(t)
	entries, err := agg.Leaderboard(context.Background(), MetricWinRate, PeriodAll, 10)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotEqual(t, "carol", e.UserID)
		assert.Positive(t, e.GamesPlayed)
	}
}

func TestLeaderboardConcurrentCallers(t *testing.T) {
	agg, _ := fixture(t)
	ctx := context.Background()

	want, err := agg.Leaderboard(ctx, MetricCompositeScore, PeriodAll, 10)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := agg.Leaderboard(ctx, MetricCompositeScore, PeriodAll, 10)
			assert.NoError(t, err)
			assert.Equal(t, want, got)
			if len(got) > 0 {
				got[0].Rank = 99
			}
		}()
	}
	wg.Wait()
}

// ctxStore fails reads once the caller's context is done.
type ctxStore struct {
	store.Store
}

func (s ctxStore) ListGames(ctx context.Context, f store.GameFilter) ([]*game.Game, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return s.Store.ListGames(ctx, f)
}

func TestLeaderboardScanIgnoresCallerCancellation(t *testing.T) {
	_, st := fixture(t)
	agg := New(ctxStore{st}, func() time.Time { return now })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got, err := agg.Leaderboard(ctx, MetricCompositeScore, PeriodAll, 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	_, err = agg.UserStats(ctx, "alice", PeriodAll)
	assert.ErrorIs(t, err, context.Canceled)
}
