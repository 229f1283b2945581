// internal/stats/stats.go
//
// Read-side aggregation over terminal games.
// Responsibilities:
//   - Per-user and global summaries for a period window (all, 1d, 7d, 30d).
//   - Leaderboards ranked by win rate, average guesses or total score.
//
// Notes:
//   - Only WON and LOST games count towards played games and averages.
//     ABORTED games are reported as a separate count.
//   - Terminal games never change, so scans take no engine locks. A game
//     finishing mid-scan may or may not be included.
//   - Concurrent identical leaderboard queries share one scan.

package stats

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	mstats "github.com/montanaflynn/stats"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/game"
	"github.com/podut/hangman-server/internal/store"
)

// Period is a look-back window on the game's finish time.
type Period string

const (
	PeriodAll Period = "all"
	Period1d  Period = "1d"
	Period7d  Period = "7d"
	Period30d Period = "30d"
)

// ParsePeriod accepts "", all, 1d, 7d and 30d. Empty means all.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(s); p {
	case "":
		return PeriodAll, nil
	case PeriodAll, Period1d, Period7d, Period30d:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q (want all, 1d, 7d or 30d)", core.ErrInvalidPeriod, s)
}

// Since returns the inclusive cutoff for p at now, or nil for all time.
func (p Period) Since(now time.Time) *time.Time {
	var d time.Duration
	switch p {
	case Period1d:
		d = 24 * time.Hour
	case Period7d:
		d = 7 * 24 * time.Hour
	case Period30d:
		d = 30 * 24 * time.Hour
	default:
		return nil
	}
	t := now.Add(-d)
	return &t
}

// Metric selects the leaderboard ranking.
type Metric string

const (
	MetricWinRate        Metric = "win_rate"
	MetricAvgGuesses     Metric = "avg_guesses"
	MetricCompositeScore Metric = "composite_score"
)

// ParseMetric accepts the three metrics. Empty means composite_score.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case "":
		return MetricCompositeScore, nil
	case MetricWinRate, MetricAvgGuesses, MetricCompositeScore:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q (want win_rate, avg_guesses or composite_score)", core.ErrInvalidMetric, s)
}

// Leaderboard sizes.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Summary aggregates a set of terminal games.
type Summary struct {
	GamesPlayed  int `json:"games_played"` // WON + LOST
	GamesWon     int `json:"games_won"`
	GamesLost    int `json:"games_lost"`
	GamesAborted int `json:"games_aborted"`

	WinRate           float64 `json:"win_rate"`
	AvgGuesses        float64 `json:"avg_guesses"`
	AvgWrongLetters   float64 `json:"avg_wrong_letters"`
	AvgElapsedSeconds float64 `json:"avg_elapsed_seconds"`
	AvgScore          float64 `json:"avg_score"`
	TotalScore        float64 `json:"total_score"`
	BestScore         float64 `json:"best_score"`
}

type UserStats struct {
	UserID string `json:"user_id"`
	Period Period `json:"period"`
	Summary
}

type GlobalStats struct {
	Period          Period `json:"period"`
	DistinctPlayers int    `json:"distinct_players"`
	TotalSessions   int    `json:"total_sessions"`
	Summary
}

// LeaderboardEntry is one ranked player. Value is the ranking metric.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	UserID      string    `json:"user_id"`
	Username    string    `json:"username,omitempty"`
	Value       float64   `json:"value"`
	FirstGameAt time.Time `json:"first_game_at"`
	Summary
}

// Aggregator computes statistics from a Store.
type Aggregator struct {
	store store.Store
	now   func() time.Time
	group singleflight.Group
}

// New returns an Aggregator. now defaults to the UTC wall clock.
func New(st store.Store, now func() time.Time) *Aggregator {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Aggregator{store: st, now: now}
}

// UserStats summarises userID's games finished within period.
func (a *Aggregator) UserStats(ctx context.Context, userID string, period Period) (UserStats, error) {
	games, err := a.terminalGames(ctx, userID, period)
	if err != nil {
		return UserStats{}, err
	}
	return UserStats{UserID: userID, Period: period, Summary: summarize(games)}, nil
}

// GlobalStats summarises every player's games finished within period.
func (a *Aggregator) GlobalStats(ctx context.Context, period Period) (GlobalStats, error) {
	games, err := a.terminalGames(ctx, "", period)
	if err != nil {
		return GlobalStats{}, err
	}
	players := map[string]struct{}{}
	sessions := map[string]struct{}{}
	for _, g := range games {
		sessions[g.SessionID] = struct{}{}
		if g.Status.Scored() {
			players[g.UserID] = struct{}{}
		}
	}
	return GlobalStats{
		Period:          period,
		DistinctPlayers: len(players),
		TotalSessions:   len(sessions),
		Summary:         summarize(games),
	}, nil
}

// Leaderboard ranks players with at least one WON or LOST game in period.
// Lower avg_guesses ranks higher; higher win_rate and composite_score rank
// higher. Ties go to more games played, then the earlier first game, then
// the user id. limit defaults to DefaultLimit and is capped at MaxLimit.
func (a *Aggregator) Leaderboard(ctx context.Context, metric Metric, period Period, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	key := fmt.Sprintf("%s|%s|%d", metric, period, limit)
	// Shared scans outlive a cancelled caller.
	scanCtx := context.WithoutCancel(ctx)
	v, err, shared := a.group.Do(key, func() (any, error) {
		return a.leaderboard(scanCtx, metric, period, limit)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Str("key", key).Msg("leaderboard scan shared")
	}
	return slices.Clone(v.([]LeaderboardEntry)), nil
}

func (a *Aggregator) leaderboard(ctx context.Context, metric Metric, period Period, limit int) ([]LeaderboardEntry, error) {
	games, err := a.terminalGames(ctx, "", period)
	if err != nil {
		return nil, err
	}

	byUser := map[string][]*game.Game{}
	first := map[string]time.Time{}
	for _, g := range games {
		if !g.Status.Scored() {
			continue
		}
		byUser[g.UserID] = append(byUser[g.UserID], g)
		if t, ok := first[g.UserID]; !ok || g.CreatedAt.Before(t) {
			first[g.UserID] = g.CreatedAt
		}
	}

	entries := make([]LeaderboardEntry, 0, len(byUser))
	for userID, gs := range byUser {
		sum := summarize(gs)
		entries = append(entries, LeaderboardEntry{
			UserID:      userID,
			Value:       metricValue(metric, sum),
			FirstGameAt: first[userID],
			Summary:     sum,
		})
	}

	slices.SortFunc(entries, func(x, y LeaderboardEntry) int {
		c := cmp.Compare(y.Value, x.Value)
		if metric == MetricAvgGuesses {
			c = -c
		}
		if c != 0 {
			return c
		}
		if c := cmp.Compare(y.GamesPlayed, x.GamesPlayed); c != 0 {
			return c
		}
		if c := x.FirstGameAt.Compare(y.FirstGameAt); c != 0 {
			return c
		}
		return cmp.Compare(x.UserID, y.UserID)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
		u, err := a.store.GetUser(ctx, entries[i].UserID)
		switch {
		case err == nil:
			entries[i].Username = u.Username
		case !core.IsNotFound(err):
			log.Warn().Err(err).Str("user", entries[i].UserID).Msg("leaderboard username lookup")
		}
	}
	return entries, nil
}

// terminalGames loads WON, LOST and ABORTED games finished within period,
// for one user or for everyone when userID is empty.
func (a *Aggregator) terminalGames(ctx context.Context, userID string, period Period) ([]*game.Game, error) {
	games, _, err := a.store.ListGames(ctx, store.GameFilter{
		UserID:        userID,
		Statuses:      []game.Status{game.StatusWon, game.StatusLost, game.StatusAborted},
		FinishedSince: period.Since(a.now()),
	})
	return games, err
}

func metricValue(m Metric, s Summary) float64 {
	switch m {
	case MetricWinRate:
		return s.WinRate
	case MetricAvgGuesses:
		return s.AvgGuesses
	default:
		return s.TotalScore
	}
}

// summarize folds games into a Summary. Averages and the win rate only
// consider WON and LOST games.
func summarize(games []*game.Game) Summary {
	var s Summary
	var guesses, wrong, elapsed, pts mstats.Float64Data
	for _, g := range games {
		switch g.Status {
		case game.StatusWon:
			s.GamesWon++
		case game.StatusLost:
			s.GamesLost++
		case game.StatusAborted:
			s.GamesAborted++
			continue
		default:
			continue
		}
		guesses = append(guesses, float64(g.TotalGuesses))
		wrong = append(wrong, float64(len(g.WrongLetters)))
		elapsed = append(elapsed, g.ElapsedSeconds)
		if g.CompositeScore != nil {
			pts = append(pts, *g.CompositeScore)
		}
	}
	s.GamesPlayed = s.GamesWon + s.GamesLost
	if s.GamesPlayed == 0 {
		return s
	}

	s.WinRate = float64(s.GamesWon) / float64(s.GamesPlayed)
	s.AvgGuesses, _ = guesses.Mean()
	s.AvgWrongLetters, _ = wrong.Mean()
	s.AvgElapsedSeconds, _ = elapsed.Mean()
	if len(pts) > 0 {
		s.AvgScore, _ = pts.Mean()
		s.TotalScore, _ = pts.Sum()
		s.BestScore, _ = pts.Max()
	}
	return s
}
