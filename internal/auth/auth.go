// internal/auth/auth.go
//
// Player accounts and bearer tokens.
// Responsibilities:
//   - Sign-up validation (username 3–24 of [A-Za-z0-9_], password 8–100).
//   - bcrypt password hashing and verification.
//   - HS256 JWT issue/verify with id + username claims.
//
// Notes:
//   - Usernames are unique case-insensitively (enforced by the store).
//   - Authenticate also checks that the token's user still exists.

package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/podut/hangman-server/internal/core"
	"github.com/podut/hangman-server/internal/store"
)

// Claims carried by issued tokens.
type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type Options struct {
	Secret string
	TTL    time.Duration    // default 14 days
	Cost   int              // bcrypt cost, default bcrypt.DefaultCost
	Now    func() time.Time // default UTC wall clock
	NewID  func() string    // default core.NewID
}

// Service registers, logs in and authenticates users.
type Service struct {
	store store.Store
	opts  Options
}

func NewService(st store.Store, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = 14 * 24 * time.Hour
	}
	if opts.Cost == 0 {
		opts.Cost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = core.NewID
	}
	return &Service{store: st, opts: opts}
}

// NormalizeUsername trims surrounding whitespace.
func NormalizeUsername(u string) string {
	return strings.TrimSpace(u)
}

// ValidateSignup enforces username and password rules.
func ValidateSignup(u, p string) error {
	if len(u) < 3 || len(u) > 24 {
		return core.NewValidationError(core.ErrInvalidUser, "username", "must be 3-24 characters")
	}
	for _, r := range u {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return core.NewValidationError(core.ErrInvalidUser, "username", "may contain letters, digits and underscore only")
		}
	}
	if len(p) < 8 || len(p) > 100 {
		return core.NewValidationError(core.ErrInvalidUser, "password", "must be 8-100 characters")
	}
	return nil
}

// Register creates a user. A taken username yields core.ErrUsernameTaken.
func (s *Service) Register(ctx context.Context, username, password string) (*store.User, error) {
	username = NormalizeUsername(username)
	if err := ValidateSignup(username, password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.Cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &store.User{
		ID:           s.opts.NewID(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.opts.Now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	log.Info().Str("user", u.ID).Str("username", u.Username).Msg("user registered")
	return u, nil
}

// Login checks credentials. Unknown users and wrong passwords both yield
// core.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*store.User, error) {
	u, err := s.store.GetUserByUsername(ctx, NormalizeUsername(username))
	if core.IsNotFound(err) {
		return nil, core.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, core.ErrInvalidCredentials
	}
	return u, nil
}

// CheckPassword is a bcrypt verifier.
func CheckPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// IssueToken signs an HS256 token for u and returns it with its expiry.
func (s *Service) IssueToken(u *store.User) (string, time.Time, error) {
	now := s.opts.Now()
	exp := now.Add(s.opts.TTL)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID:       u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	ss, err := t.SignedString([]byte(s.opts.Secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return ss, exp, nil
}

// ParseToken verifies signature, algorithm and expiry.
func (s *Service) ParseToken(tok string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tok, claims, func(*jwt.Token) (any, error) {
		return []byte(s.opts.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.opts.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Username == "" {
		return nil, fmt.Errorf("%w: missing subject", core.ErrInvalidToken)
	}
	return claims, nil
}

// Authenticate resolves a token to a stored user.
func (s *Service) Authenticate(ctx context.Context, tok string) (*store.User, error) {
	claims, err := s.ParseToken(tok)
	if err != nil {
		return nil, err
	}
	u, err := s.store.GetUser(ctx, claims.ID)
	if core.IsNotFound(err) {
		return nil, fmt.Errorf("%w: unknown user", core.ErrInvalidToken)
	}
	return u, err
}
