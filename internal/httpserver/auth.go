package httpserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/store"
)

type ctxUserKey struct{}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authRes struct {
	User      userView  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.auth.Register(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeToken(w, r, http.StatusCreated, u)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsReq
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.auth.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeToken(w, r, http.StatusOK, u)
}

func (s *Server) writeToken(w http.ResponseWriter, r *http.Request, status int, u *store.User) {
	tok, exp, err := s.auth.IssueToken(u)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.setAuthCookie(w, tok, exp)
	writeJSON(w, status, authRes{User: newUserView(u), Token: tok, ExpiresAt: exp})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.setAuthCookie(w, "", time.Time{})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// setAuthCookie stores tok in the auth cookie; an empty tok clears it.
func (s *Server) setAuthCookie(w http.ResponseWriter, tok string, exp time.Time) {
	if s.opts.CookieName == "" {
		return
	}
	sameSite := http.SameSiteLaxMode
	if s.opts.SecureCookies {
		sameSite = http.SameSiteNoneMode
	}
	c := &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: sameSite,
		Expires:  exp,
	}
	if tok == "" {
		c.Expires = time.Time{}
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newUserView(currentUser(r)))
}

// requireAuth resolves the bearer token to a user or rejects with 401.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := s.bearerOrCookie(r)
		if tok == "" {
			writeError(w, r, core.ErrAuth)
			return
		}
		u, err := s.auth.Authenticate(r.Context(), tok)
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserKey{}, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerOrCookie reads "Authorization: Bearer <token>", then the auth cookie.
func (s *Server) bearerOrCookie(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if s.opts.CookieName == "" {
		return ""
	}
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		return c.Value
	}
	return ""
}

// currentUser is set by requireAuth; nil on public routes.
func currentUser(r *http.Request) *store.User {
	u, _ := r.Context().Value(ctxUserKey{}).(*store.User)
	return u
}
