package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/game"
	"github.com/podut/hangman-server/internal/session"
	"github.com/podut/hangman-server/internal/words"
)

// mountSessions registers session and game routes. Callers must install
// requireAuth first.
func (s *Server) mountSessions(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.With(s.idem.middleware).Post("/", s.handleCreateSession)
		r.Get("/", s.handleListSessions)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/abort", s.handleAbortSession)

			r.Get("/games", s.handleListGames)
			r.With(s.idem.middleware).Post("/games", s.handleCreateGame)

			r.Route("/games/{gameID}", func(r chi.Router) {
				r.Get("/state", s.handleGameState)
				r.Post("/guess", s.handleGuess)
				r.Post("/abort", s.handleAbortGame)
				r.Get("/history", s.handleHistory)
			})
		})
	})
}

// createSessionReq fields are optional; nil means the default.
type createSessionReq struct {
	NumGames       *int   `json:"num_games"`
	Difficulty     string `json:"difficulty"`
	MaxMisses      *int   `json:"max_misses"`
	AllowWordGuess *bool  `json:"allow_word_guess"`
	DictionaryID   string `json:"dictionary_id"`
	Seed           *int64 `json:"seed"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p := session.Params{
		UserID:         currentUser(r).ID,
		NumGames:       1,
		Difficulty:     words.Difficulty(req.Difficulty),
		MaxMisses:      s.opts.DefaultMaxMisses,
		AllowWordGuess: true,
		DictionaryID:   req.DictionaryID,
		Seed:           req.Seed,
	}
	if req.NumGames != nil {
		p.NumGames = *req.NumGames
	}
	if req.MaxMisses != nil {
		p.MaxMisses = *req.MaxMisses
	}
	if req.AllowWordGuess != nil {
		p.AllowWordGuess = *req.AllowWordGuess
	}

	sess, err := s.engine.CreateSession(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID)
	writeJSON(w, http.StatusCreated, newSessionView(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, total, err := s.engine.ListSessions(r.Context(), currentUser(r).ID, p.offset(), p.PageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, r, mapSlice(list, newSessionView), p, total)
}

// ownedSession loads the path session and checks it belongs to the caller.
func (s *Server) ownedSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.engine.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err == nil && sess.UserID != currentUser(r).ID {
		err = core.ErrForbidden
	}
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

// ownedGame loads the path game and checks it belongs to the path session
// and the caller.
func (s *Server) ownedGame(w http.ResponseWriter, r *http.Request) (*game.Game, bool) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return nil, false
	}
	id := chi.URLParam(r, "gameID")
	g, err := s.engine.GetGame(r.Context(), id)
	if err == nil && g.SessionID != sess.ID {
		err = core.NewNotFoundError(core.ErrGameNotFound, id)
	}
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return g, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.ownedSession(w, r); ok {
		writeJSON(w, http.StatusOK, newSessionView(sess))
	}
}

func (s *Server) handleAbortSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	sess, err := s.engine.AbortSession(r.Context(), sess.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(sess))
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	p, err := parsePage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, total, err := s.engine.ListGames(r.Context(), sess.ID, p.offset(), p.PageSize)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writePage(w, r, mapSlice(list, newGameView), p, total)
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.ownedSession(w, r)
	if !ok {
		return
	}
	g, err := s.engine.CreateGame(r.Context(), sess.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID+"/games/"+g.ID+"/state")
	writeJSON(w, http.StatusCreated, newGameView(g))
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	if g, ok := s.ownedGame(w, r); ok {
		writeJSON(w, http.StatusOK, newGameView(g))
	}
}

// guessReq must carry exactly one of letter or word.
type guessReq struct {
	Letter string `json:"letter"`
	Word   string `json:"word"`
}

type guessRes struct {
	Game    gameView     `json:"game"`
	Guess   guessView    `json:"guess"`
	Session *sessionView `json:"session,omitempty"`
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	g, ok := s.ownedGame(w, r)
	if !ok {
		return
	}
	var req guessReq
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	move, err := game.ParseMove(req.Letter, req.Word)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.engine.SubmitGuess(r.Context(), g.ID, move)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := guessRes{Game: newGameView(res.Game), Guess: newGuessView(res.Guess)}
	if res.Session != nil {
		v := newSessionView(res.Session)
		out.Session = &v
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAbortGame(w http.ResponseWriter, r *http.Request) {
	g, ok := s.ownedGame(w, r)
	if !ok {
		return
	}
	g, err := s.engine.AbortGame(r.Context(), g.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newGameView(g))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	g, ok := s.ownedGame(w, r)
	if !ok {
		return
	}
	history, err := s.engine.GuessHistory(r.Context(), g.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"game_id": g.ID,
		"guesses": mapSlice(history, newGuessView),
	})
}
