// internal/store/sqlstore/sqlstore.go
//
// SQL implementation of store.Store on top of sqlx.
// Responsibilities:
//   - Open SQLite, PostgreSQL or MySQL with per-dialect settings.
//   - Apply embedded migrations (see migrate.go).
//   - Map sessions, games, guesses and users to rows and back.
//   - Run multi-record writes in one transaction.
//
// Notes:
//   - Queries are written with "?" and rebound for the driver by sqlx.
//   - Times are stored as Unix nanoseconds so every dialect round-trips
//     them exactly.

package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/game"
	"github.com/podut/hangman-server/internal/session"
	"github.com/podut/hangman-server/internal/store"
	"github.com/podut/hangman-server/internal/words"
)

// Store is a store.Store backed by a SQL database.
type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

var _ store.Store = (*Store)(nil)

// Open connects to the database named by driver ("sqlite", "postgres" or
// "mysql") and target (file path for SQLite, URL otherwise), then migrates.
func Open(ctx context.Context, driver, target string) (*Store, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	dsn, err := d.DSN(target)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	if err := d.Configure(db, target); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure %s: %w", d.Name(), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.Name(), err)
	}
	s := New(db, d)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open connection. Call Migrate before use.
func New(db *sqlx.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// DB exposes the connection for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// --- rows ---

type userRow struct {
	ID           string `db:"id"`
	Username     string `db:"username"`
	UsernameKey  string `db:"username_key"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    int64  `db:"created_at"`
}

type sessionRow struct {
	ID             string        `db:"id"`
	UserID         string        `db:"user_id"`
	NumGames       int           `db:"num_games"`
	Difficulty     string        `db:"difficulty"`
	MaxMisses      int           `db:"max_misses"`
	AllowWordGuess bool          `db:"allow_word_guess"`
	DictionaryID   string        `db:"dictionary_id"`
	Seed           sql.NullInt64 `db:"seed"`
	Status         string        `db:"status"`
	GamesCreated   int           `db:"games_created"`
	GamesFinished  int           `db:"games_finished"`
	UsedWords      string        `db:"used_words"`
	CreatedAt      int64         `db:"created_at"`
	FinishedAt     sql.NullInt64 `db:"finished_at"`
}

type gameRow struct {
	ID               string          `db:"id"`
	SessionID        string          `db:"session_id"`
	UserID           string          `db:"user_id"`
	Secret           string          `db:"secret"`
	SecretKey        string          `db:"secret_key"`
	MaxMisses        int             `db:"max_misses"`
	AllowWordGuess   bool            `db:"allow_word_guess"`
	Pattern          string          `db:"pattern"`
	CorrectLetters   string          `db:"correct_letters"`
	WrongLetters     string          `db:"wrong_letters"`
	RemainingMisses  int             `db:"remaining_misses"`
	WrongWordGuesses int             `db:"wrong_word_guesses"`
	TotalGuesses     int             `db:"total_guesses"`
	Status           string          `db:"status"`
	CompositeScore   sql.NullFloat64 `db:"composite_score"`
	ElapsedSeconds   float64         `db:"elapsed_seconds"`
	CreatedAt        int64           `db:"created_at"`
	FinishedAt       sql.NullInt64   `db:"finished_at"`
}

type guessRow struct {
	GameID       string `db:"game_id"`
	Idx          int    `db:"idx"`
	Kind         string `db:"kind"`
	Value        string `db:"value"`
	WordKey      string `db:"word_key"`
	Correct      bool   `db:"correct"`
	PatternAfter string `db:"pattern_after"`
	CreatedAt    int64  `db:"created_at"`
}

const (
	sessionColumns = `id, user_id, num_games, difficulty, max_misses, allow_word_guess, dictionary_id, seed,
		status, games_created, games_finished, used_words, created_at, finished_at`
	gameColumns = `id, session_id, user_id, secret, secret_key, max_misses, allow_word_guess, pattern,
		correct_letters, wrong_letters, remaining_misses, wrong_word_guesses, total_guesses, status,
		composite_score, elapsed_seconds, created_at, finished_at`
	guessColumns = `game_id, idx, kind, value, word_key, correct, pattern_after, created_at`
)

func toNanos(t time.Time) int64 { return t.UnixNano() }

func fromNanos(n int64) time.Time { return time.Unix(0, n).UTC() }

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func encodeList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	return string(b), err
}

func decodeList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}

func fromSession(s *session.Session) (sessionRow, error) {
	used, err := encodeList(s.UsedWords)
	if err != nil {
		return sessionRow{}, err
	}
	r := sessionRow{
		ID:             s.ID,
		UserID:         s.UserID,
		NumGames:       s.NumGames,
		Difficulty:     string(s.Difficulty),
		MaxMisses:      s.MaxMisses,
		AllowWordGuess: s.AllowWordGuess,
		DictionaryID:   s.DictionaryID,
		Status:         string(s.Status),
		GamesCreated:   s.GamesCreated,
		GamesFinished:  s.GamesFinished,
		UsedWords:      used,
		CreatedAt:      toNanos(s.CreatedAt),
		FinishedAt:     nullTime(s.FinishedAt),
	}
	if s.Seed != nil {
		r.Seed = sql.NullInt64{Int64: *s.Seed, Valid: true}
	}
	return r, nil
}

func (r sessionRow) toSession() (*session.Session, error) {
	used, err := decodeList(r.UsedWords)
	if err != nil {
		return nil, err
	}
	s := &session.Session{
		ID: r.ID,
		Params: session.Params{
			UserID:         r.UserID,
			NumGames:       r.NumGames,
			Difficulty:     words.Difficulty(r.Difficulty),
			MaxMisses:      r.MaxMisses,
			AllowWordGuess: r.AllowWordGuess,
			DictionaryID:   r.DictionaryID,
		},
		Status:        session.Status(r.Status),
		GamesCreated:  r.GamesCreated,
		GamesFinished: r.GamesFinished,
		UsedWords:     used,
		CreatedAt:     fromNanos(r.CreatedAt),
		FinishedAt:    timePtr(r.FinishedAt),
	}
	if r.Seed.Valid {
		seed := r.Seed.Int64
		s.Seed = &seed
	}
	return s, nil
}

func fromGame(g *game.Game) (gameRow, error) {
	correct, err := encodeList(g.CorrectLetters)
	if err != nil {
		return gameRow{}, err
	}
	wrong, err := encodeList(g.WrongLetters)
	if err != nil {
		return gameRow{}, err
	}
	r := gameRow{
		ID:               g.ID,
		SessionID:        g.SessionID,
		UserID:           g.UserID,
		Secret:           g.Secret,
		SecretKey:        g.SecretKey,
		MaxMisses:        g.MaxMisses,
		AllowWordGuess:   g.AllowWordGuess,
		Pattern:          g.Pattern,
		CorrectLetters:   correct,
		WrongLetters:     wrong,
		RemainingMisses:  g.RemainingMisses,
		WrongWordGuesses: g.WrongWordGuesses,
		TotalGuesses:     g.TotalGuesses,
		Status:           string(g.Status),
		ElapsedSeconds:   g.ElapsedSeconds,
		CreatedAt:        toNanos(g.CreatedAt),
		FinishedAt:       nullTime(g.FinishedAt),
	}
	if g.CompositeScore != nil {
		r.CompositeScore = sql.NullFloat64{Float64: *g.CompositeScore, Valid: true}
	}
	return r, nil
}

func (r gameRow) toGame() (*game.Game, error) {
	correct, err := decodeList(r.CorrectLetters)
	if err != nil {
		return nil, err
	}
	wrong, err := decodeList(r.WrongLetters)
	if err != nil {
		return nil, err
	}
	g := &game.Game{
		ID:               r.ID,
		SessionID:        r.SessionID,
		UserID:           r.UserID,
		Secret:           r.Secret,
		SecretKey:        r.SecretKey,
		MaxMisses:        r.MaxMisses,
		AllowWordGuess:   r.AllowWordGuess,
		Pattern:          r.Pattern,
		CorrectLetters:   correct,
		WrongLetters:     wrong,
		RemainingMisses:  r.RemainingMisses,
		WrongWordGuesses: r.WrongWordGuesses,
		TotalGuesses:     r.TotalGuesses,
		Status:           game.Status(r.Status),
		ElapsedSeconds:   r.ElapsedSeconds,
		CreatedAt:        fromNanos(r.CreatedAt),
		FinishedAt:       timePtr(r.FinishedAt),
	}
	if r.CompositeScore.Valid {
		score := r.CompositeScore.Float64
		g.CompositeScore = &score
	}
	return g, nil
}

func fromGuess(g game.Guess) guessRow {
	return guessRow{
		GameID:       g.GameID,
		Idx:          g.Index,
		Kind:         string(g.Kind),
		Value:        g.Value,
		WordKey:      g.Key,
		Correct:      g.Correct,
		PatternAfter: g.PatternAfter,
		CreatedAt:    toNanos(g.CreatedAt),
	}
}

func (r guessRow) toGuess() game.Guess {
	return game.Guess{
		GameID:       r.GameID,
		Index:        r.Idx,
		Kind:         game.GuessKind(r.Kind),
		Value:        r.Value,
		Key:          r.WordKey,
		Correct:      r.Correct,
		PatternAfter: r.PatternAfter,
		CreatedAt:    fromNanos(r.CreatedAt),
	}
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	row := userRow{
		ID:           u.ID,
		Username:     u.Username,
		UsernameKey:  strings.ToLower(u.Username),
		PasswordHash: u.PasswordHash,
		CreatedAt:    toNanos(u.CreatedAt),
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO users (id, username, username_key, password_hash, created_at)
		VALUES (:id, :username, :username_key, :password_hash, :created_at)`, row)
	if isUniqueViolation(err) {
		return core.ErrUsernameTaken
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	return s.getUser(ctx, "id", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	return s.getUser(ctx, "username_key", strings.ToLower(username))
}

func (s *Store) getUser(ctx context.Context, column, value string) (*store.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT id, username, username_key, password_hash, created_at
		FROM users WHERE `+column+` = ?`), value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError(core.ErrUserNotFound, value)
	}
	if err != nil {
		return nil, err
	}
	return &store.User{ID: row.ID, Username: row.Username, PasswordHash: row.PasswordHash, CreatedAt: fromNanos(row.CreatedAt)}, nil
}

// --- sessions ---

const insertSession = `INSERT INTO sessions (` + sessionColumns + `)
	VALUES (:id, :user_id, :num_games, :difficulty, :max_misses, :allow_word_guess, :dictionary_id, :seed,
		:status, :games_created, :games_finished, :used_words, :created_at, :finished_at)`

const updateSessionSQL = `UPDATE sessions SET status = :status, games_created = :games_created,
	games_finished = :games_finished, used_words = :used_words, finished_at = :finished_at
	WHERE id = :id`

func (s *Store) CreateSession(ctx context.Context, sess *session.Session) error {
	row, err := fromSession(sess)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, insertSession, row)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*session.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError(core.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return row.toSession()
}

func (s *Store) ListSessions(ctx context.Context, f store.SessionFilter) ([]*session.Session, int, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN (?)")
		args = append(args, statusStrings(f.Statuses))
	}

	total, err := s.count(ctx, "sessions", where, args)
	if err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + sessionColumns + ` FROM sessions` + whereClause(where) + ` ORDER BY created_at DESC, id DESC`
	q, args = paginate(q, args, f.Offset, f.Limit)
	var rows []sessionRow
	if err := s.selectIn(ctx, &rows, q, args); err != nil {
		return nil, 0, err
	}
	out := make([]*session.Session, 0, len(rows))
	for _, r := range rows {
		sess, err := r.toSession()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, sess)
	}
	return out, total, nil
}

func (s *Store) SaveSession(ctx context.Context, sess *session.Session, games []*game.Game) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateSession(ctx, tx, sess); err != nil {
			return err
		}
		for _, g := range games {
			if err := updateGame(ctx, tx, g); err != nil {
				return err
			}
		}
		return nil
	})
}

func updateSession(ctx context.Context, tx *sqlx.Tx, sess *session.Session) error {
	row, err := fromSession(sess)
	if err != nil {
		return err
	}
	res, err := tx.NamedExecContext(ctx, updateSessionSQL, row)
	if err != nil {
		return err
	}
	return requireRow(res, core.ErrSessionNotFound, sess.ID)
}

// --- games ---

const insertGame = `INSERT INTO games (` + gameColumns + `)
	VALUES (:id, :session_id, :user_id, :secret, :secret_key, :max_misses, :allow_word_guess, :pattern,
		:correct_letters, :wrong_letters, :remaining_misses, :wrong_word_guesses, :total_guesses, :status,
		:composite_score, :elapsed_seconds, :created_at, :finished_at)`

const updateGameSQL = `UPDATE games SET pattern = :pattern, correct_letters = :correct_letters,
	wrong_letters = :wrong_letters, remaining_misses = :remaining_misses,
	wrong_word_guesses = :wrong_word_guesses, total_guesses = :total_guesses, status = :status,
	composite_score = :composite_score, elapsed_seconds = :elapsed_seconds, finished_at = :finished_at
	WHERE id = :id`

func (s *Store) CreateGame(ctx context.Context, sess *session.Session, g *game.Game) error {
	row, err := fromGame(g)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateSession(ctx, tx, sess); err != nil {
			return err
		}
		_, err := tx.NamedExecContext(ctx, insertGame, row)
		return err
	})
}

func (s *Store) GetGame(ctx context.Context, id string) (*game.Game, error) {
	var row gameRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+gameColumns+` FROM games WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError(core.ErrGameNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return row.toGame()
}

func (s *Store) ListGames(ctx context.Context, f store.GameFilter) ([]*game.Game, int, error) {
	var (
		where []string
		args  []any
	)
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if len(f.Statuses) > 0 {
		where = append(where, "status IN (?)")
		args = append(args, statusStrings(f.Statuses))
	}
	if f.FinishedSince != nil {
		where = append(where, "finished_at >= ?")
		args = append(args, toNanos(*f.FinishedSince))
	}

	total, err := s.count(ctx, "games", where, args)
	if err != nil {
		return nil, 0, err
	}

	q := `SELECT ` + gameColumns + ` FROM games` + whereClause(where) + ` ORDER BY created_at ASC, id ASC`
	q, args = paginate(q, args, f.Offset, f.Limit)
	var rows []gameRow
	if err := s.selectIn(ctx, &rows, q, args); err != nil {
		return nil, 0, err
	}
	out := make([]*game.Game, 0, len(rows))
	for _, r := range rows {
		g, err := r.toGame()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, g)
	}
	return out, total, nil
}

func (s *Store) SaveGame(ctx context.Context, g *game.Game, guess *game.Guess, sess *session.Session) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := updateGame(ctx, tx, g); err != nil {
			return err
		}
		if guess != nil {
			if _, err := tx.NamedExecContext(ctx, `INSERT INTO guesses (`+guessColumns+`)
				VALUES (:game_id, :idx, :kind, :value, :word_key, :correct, :pattern_after, :created_at)`, fromGuess(*guess)); err != nil {
				return err
			}
		}
		if sess != nil {
			return updateSession(ctx, tx, sess)
		}
		return nil
	})
}

func updateGame(ctx context.Context, tx *sqlx.Tx, g *game.Game) error {
	row, err := fromGame(g)
	if err != nil {
		return err
	}
	res, err := tx.NamedExecContext(ctx, updateGameSQL, row)
	if err != nil {
		return err
	}
	return requireRow(res, core.ErrGameNotFound, g.ID)
}

func (s *Store) ListGuesses(ctx context.Context, gameID string) ([]game.Guess, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(`SELECT COUNT(*) FROM games WHERE id = ?`), gameID); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, core.NewNotFoundError(core.ErrGameNotFound, gameID)
	}
	var rows []guessRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+guessColumns+` FROM guesses WHERE game_id = ? ORDER BY idx`), gameID); err != nil {
		return nil, err
	}
	out := make([]game.Guess, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toGuess())
	}
	return out, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *Store) count(ctx context.Context, table string, where []string, args []any) (int, error) {
	q, a, err := sqlx.In(`SELECT COUNT(*) FROM `+table+whereClause(where), args...)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, s.db.Rebind(q), a...); err != nil {
		return 0, err
	}
	return n, nil
}

// selectIn expands IN (?) slices, rebinds and selects.
func (s *Store) selectIn(ctx context.Context, dest any, q string, args []any) error {
	q, a, err := sqlx.In(q, args...)
	if err != nil {
		return err
	}
	return s.db.SelectContext(ctx, dest, s.db.Rebind(q), a...)
}

func whereClause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(where, " AND ")
}

func paginate(q string, args []any, offset, limit int) (string, []any) {
	if limit <= 0 && offset <= 0 {
		return q, args
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}
	if offset < 0 {
		offset = 0
	}
	return q + " LIMIT ? OFFSET ?", append(args, limit, offset)
}

func requireRow(res sql.Result, sentinel error, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.NewNotFoundError(sentinel, id)
	}
	return nil
}

func statusStrings[T ~string](statuses []T) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
