package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/podut/hangman-server/internal/auth"
	"github.com/podut/hangman-server/internal/engine"
	"github.com/podut/hangman-server/internal/stats"
	"github.com/podut/hangman-server/internal/store"
	"github.com/podut/hangman-server/internal/words"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t *testing.T
	h http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	now := func() time.Time { return t0 }

	reg := words.NewRegistry()
	d, err := words.NewDictionary("test", "Test", "en", []string{"cat", "dog", "owl"}, t0)
	require.NoError(t, err)
	require.NoError(t, reg.Add(d))

	st := store.NewMemoryStore()
	eng := engine.New(st, reg, engine.Options{
		DefaultDictionary:        "test",
		MaxActiveSessionsPerUser: 5,
		MaxGamesPerSession:       10,
		Now:                      now,
	})
	authSvc := auth.NewService(st, auth.Options{Secret: "secret", Cost: bcrypt.MinCost, Now: now})
	srv := New(eng, stats.New(st, now), authSvc, reg, Options{
		ClientOrigin:     "http://example.test",
		DefaultMaxMisses: 6,
		IdempotencyTTL:   time.Minute,
		Version:          "test",
		Now:              now,
		CookieName:       "hangman_token",
	})
	return &testServer{t: t, h: srv.Handler()}
}

func (ts *testServer) do(method, path, token string, body any, header ...string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	ts.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) register(username string) (token, id string) {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": username, "password": "password123"})
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[authRes](ts.t, rec)
	return res.Token, res.User.ID
}

func (ts *testServer) createSession(token string, body map[string]any) sessionView {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/v1/sessions", token, body)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionView](ts.t, rec)
}

func (ts *testServer) createGame(token, sessionID string) gameView {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/v1/sessions/"+sessionID+"/games", token, nil)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[gameView](ts.t, rec)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[errorBody](t, rec).Error
}

func TestServiceEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/version", "", nil)
	assert.JSONEq(t, `{"service":"hangman-go","version":"test"}`, rec.Body.String())

	rec = ts.do(http.MethodGet, "/time", "", nil)
	assert.Equal(t, t0.Unix(), int64(decode[map[string]any](t, rec)["unix"].(float64)))

	rec = ts.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = ts.do(http.MethodOptions, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://example.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), IdempotencyHeader)

	rec = ts.do(http.MethodGet, "/api/v1/dictionaries", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dicts := decode[map[string][]dictionaryView](t, rec)["dictionaries"]
	require.Len(t, dicts, 1)
	assert.Equal(t, 3, dicts[0].WordCount)
	assert.Equal(t, 3, dicts[0].ByDifficulty["easy"])
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	token, id := ts.register("alice")

	rec := ts.do(http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decode[userView](t, rec).ID)

	rec = ts.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "ALICE", "password": "password123"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "username_taken", errorCode(t, rec))

	rec = ts.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "x", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_user", errorCode(t, rec))

	rec = ts.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[authRes](t, rec).Token)

	rec = ts.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "alice", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_credentials", errorCode(t, rec))

	rec = ts.do(http.MethodGet, "/api/v1/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.do(http.MethodGet, "/api/v1/users/me", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_token", errorCode(t, rec))
}

func TestCookieAuth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{"username": "carol", "password": "password123"})
	require.Equal(t, http.StatusCreated, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "hangman_token", c.Name)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, decode[authRes](t, rec).Token, c.Value)

	rec = ts.do(http.MethodGet, "/api/v1/users/me", "", nil, "Cookie", c.Name+"="+c.Value)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "carol", decode[userView](t, rec).Username)

	rec = ts.do(http.MethodPost, "/api/v1/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Empty(t, cleared[0].Value)
	assert.Negative(t, cleared[0].MaxAge)
}

func TestPlayGame(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register("alice")

	sess := ts.createSession(token, map[string]any{"num_games": 2, "difficulty": "easy"})
	assert.Equal(t, "ACTIVE", string(sess.Status))
	assert.Equal(t, "test", sess.DictionaryID)
	assert.Equal(t, 6, sess.MaxMisses)
	assert.True(t, sess.AllowWordGuess)

	g := ts.createGame(token, sess.ID)
	assert.Equal(t, "***", g.Pattern)
	assert.Empty(t, g.Secret)
	base := "/api/v1/sessions/" + sess.ID + "/games/" + g.ID

	rec := ts.do(http.MethodPost, base+"/guess", token, map[string]string{"letter": "a", "word": "cat"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_guess", errorCode(t, rec))

	rec = ts.do(http.MethodPost, base+"/guess", token, map[string]string{"letter": "z"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[guessRes](t, rec)
	assert.False(t, res.Guess.Correct)
	assert.Equal(t, 5, res.Game.RemainingMisses)
	assert.Nil(t, res.Session)

	rec = ts.do(http.MethodPost, base+"/guess", token, map[string]string{"letter": "Z"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_guess", errorCode(t, rec))

	rec = ts.do(http.MethodGet, base+"/state", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[gameView](t, rec)
	assert.Equal(t, []string{"z"}, state.WrongLetters)
	assert.Empty(t, state.Secret)

	// the secret is revealed once the game is lost
	for _, l := range []string{"q", "x", "v", "j", "k"} {
		rec = ts.do(http.MethodPost, base+"/guess", token, map[string]string{"letter": l})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	res = decode[guessRes](t, rec)
	assert.Equal(t, "LOST", string(res.Game.Status))
	assert.NotEmpty(t, res.Game.Secret)
	require.NotNil(t, res.Session)
	assert.Equal(t, 1, res.Session.GamesFinished)

	rec = ts.do(http.MethodGet, base+"/history", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		Guesses []guessView `json:"guesses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history.Guesses, 6)
	assert.Equal(t, 0, history.Guesses[0].Index)
	assert.Equal(t, "z", history.Guesses[0].Key)

	g2 := ts.createGame(token, sess.ID)
	assert.NotEqual(t, state.ID, g2.ID)
	rec = ts.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/games/"+g2.ID+"/guess", token, map[string]string{"word": "cat"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/games", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionGameLimit(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register("alice")
	sess := ts.createSession(token, map[string]any{"num_games": 2})
	ts.createGame(token, sess.ID)
	ts.createGame(token, sess.ID)

	rec := ts.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/games", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "session_game_limit_reached", errorCode(t, rec))

	rec = ts.do(http.MethodPost, "/api/v1/sessions", token, map[string]any{"num_games": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_session_params", errorCode(t, rec))

	rec = ts.do(http.MethodPost, "/api/v1/sessions", token, map[string]any{"dictionary_id": "missing"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/sessions", token, nil, "Content-Type", "application/json")
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAbortSessionCascade(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register("alice")
	sess := ts.createSession(token, map[string]any{"num_games": 3})
	g := ts.createGame(token, sess.ID)

	rec := ts.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/abort", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ABORTED", string(decode[sessionView](t, rec).Status))

	base := "/api/v1/sessions/" + sess.ID + "/games/" + g.ID
	rec = ts.do(http.MethodGet, base+"/state", token, nil)
	state := decode[gameView](t, rec)
	assert.Equal(t, "ABORTED", string(state.Status))
	assert.Nil(t, state.CompositeScore)

	rec = ts.do(http.MethodPost, base+"/guess", token, map[string]string{"letter": "a"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "game_finished", errorCode(t, rec))

	rec = ts.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/abort", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOwnership(t *testing.T) {
	ts := newTestServer(t)
	alice, _ := ts.register("alice")
	bob, bobID := ts.register("bob")
	sess := ts.createSession(alice, nil)
	g := ts.createGame(alice, sess.ID)

	rec := ts.do(http.MethodGet, "/api/v1/sessions/"+sess.ID, bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = ts.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/games/"+g.ID+"/guess", bob, map[string]string{"letter": "a"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/sessions/missing", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "session_not_found", errorCode(t, rec))

	bobSess := ts.createSession(bob, nil)
	rec = ts.do(http.MethodGet, "/api/v1/sessions/"+bobSess.ID+"/games/"+g.ID+"/state", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "game_not_found", errorCode(t, rec))

	rec = ts.do(http.MethodGet, "/api/v1/users/"+bobID+"/stats", alice, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListGamesPagination(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register("alice")
	sess := ts.createSession(token, map[string]any{"num_games": 3})
	for i := 0; i < 3; i++ {
		ts.createGame(token, sess.ID)
	}

	rec := ts.do(http.MethodGet, "/api/v1/sessions/"+sess.ID+"/games?page=2&page_size=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	p := decode[page[gameView]](t, rec)
	assert.Len(t, p.Items, 1)
	assert.Equal(t, pagination{Page: 2, PageSize: 2, TotalItems: 3, TotalPages: 2, HasPrev: true}, p.Pagination)
	link := rec.Header().Get("Link")
	assert.Contains(t, link, `rel="first"`)
	assert.Contains(t, link, `rel="prev"`)
	assert.NotContains(t, link, `rel="next"`)
	assert.Equal(t, "3", rec.Header().Get("X-Total-Count"))

	rec = ts.do(http.MethodGet, "/api/v1/sessions/"+sess.ID+"/games?page_size=500", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(http.MethodGet, "/api/v1/sessions/"+sess.ID+"/games?page=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/sessions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[page[sessionView]](t, rec).Items, 1)
}

func TestLinkHeader(t *testing.T) {
	u, err := url.Parse("/api/v1/sessions/s1/games?page=3&page_size=10&x=y")
	require.NoError(t, err)
	got := linkHeader(u, pageParams{Page: 3, PageSize: 10}, 45)
	want := strings.Join([]string{
		`</api/v1/sessions/s1/games?page=1&page_size=10&x=y>; rel="first"`,
		`</api/v1/sessions/s1/games?page=5&page_size=10&x=y>; rel="last"`,
		`</api/v1/sessions/s1/games?page=4&page_size=10&x=y>; rel="next"`,
		`</api/v1/sessions/s1/games?page=2&page_size=10&x=y>; rel="prev"`,
	}, ", ")
	assert.Equal(t, want, got)

	assert.Equal(t, 1, totalPages(0, 10))
}

func TestIdempotentCreate(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.register("alice")
	bob, _ := ts.register("bob")
	body := map[string]any{"num_games": 2}

	first := ts.do(http.MethodPost, "/api/v1/sessions", token, body, IdempotencyHeader, "k1")
	require.Equal(t, http.StatusCreated, first.Code)
	again := ts.do(http.MethodPost, "/api/v1/sessions", token, body, IdempotencyHeader, "k1")
	require.Equal(t, http.StatusCreated, again.Code)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, decode[sessionView](t, first).ID, decode[sessionView](t, again).ID)

	other := ts.do(http.MethodPost, "/api/v1/sessions", token, body, IdempotencyHeader, "k2")
	require.Equal(t, http.StatusCreated, other.Code)
	assert.NotEqual(t, decode[sessionView](t, first).ID, decode[sessionView](t, other).ID)

	// keys are scoped per user
	bobs := ts.do(http.MethodPost, "/api/v1/sessions", bob, body, IdempotencyHeader, "k1")
	require.Equal(t, http.StatusCreated, bobs.Code)
	assert.Empty(t, bobs.Header().Get("Idempotent-Replayed"))

	// failures are not cached
	bad := ts.do(http.MethodPost, "/api/v1/sessions", token, map[string]any{"num_games": 0}, IdempotencyHeader, "k3")
	assert.Equal(t, http.StatusBadRequest, bad.Code)
	retry := ts.do(http.MethodPost, "/api/v1/sessions", token, body, IdempotencyHeader, "k3")
	assert.Equal(t, http.StatusCreated, retry.Code)
}

func TestStatsEndpoints(t *testing.T) {
	ts := newTestServer(t)
	token, id := ts.register("alice")
	sess := ts.createSession(token, map[string]any{"max_misses": 10})
	g := ts.createGame(token, sess.ID)

	rec := ts.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/games/"+g.ID+"/guess", token, map[string]string{"word": "zzz"})
	require.Equal(t, http.StatusOK, rec.Code)
	for _, w := range []string{"cat", "dog", "owl"} {
		rec = ts.do(http.MethodPost, "/api/v1/sessions/"+sess.ID+"/games/"+g.ID+"/guess", token, map[string]string{"word": w})
		if rec.Code == http.StatusOK && string(decode[guessRes](t, rec).Game.Status) == "WON" {
			break
		}
	}

	rec = ts.do(http.MethodGet, "/api/v1/users/me/stats?period=7d", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	us := decode[stats.UserStats](t, rec)
	assert.Equal(t, id, us.UserID)
	assert.Equal(t, 1, us.GamesPlayed)
	assert.Equal(t, 1, us.GamesWon)

	rec = ts.do(http.MethodGet, "/api/v1/users/me/stats?period=year", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_period", errorCode(t, rec))

	rec = ts.do(http.MethodGet, "/api/v1/stats/global", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	gs := decode[stats.GlobalStats](t, rec)
	assert.Equal(t, 1, gs.DistinctPlayers)
	assert.Equal(t, 1, gs.TotalSessions)

	rec = ts.do(http.MethodGet, "/api/v1/leaderboard?metric=win_rate&limit=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var lb struct {
		Entries []stats.LeaderboardEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lb))
	require.Len(t, lb.Entries, 1)
	assert.Equal(t, "alice", lb.Entries[0].Username)
	assert.Equal(t, 1, lb.Entries[0].Rank)

	rec = ts.do(http.MethodGet, "/api/v1/leaderboard?metric=streak", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_metric", errorCode(t, rec))
	rec = ts.do(http.MethodGet, "/api/v1/leaderboard?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
