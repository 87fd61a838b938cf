package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c-pro/geche"

	"tasktango/internal/models"
)

const (
	DefaultTokenExpiry = 24 * time.Hour
)

var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrSessionExpired = errors.New("session expired")
)

// SavedSession is what survives a restart of the client.
type SavedSession struct {
	Username  string
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Backend is the part of the REST API the session needs.
type Backend interface {
	Login(ctx context.Context, req models.LoginUser) (models.AuthResponseData, error)
	Register(ctx context.Context, req models.RegisterUser) (models.AuthResponseData, error)
	Me(ctx context.Context, token string) (models.User, error)
}

type Store interface {
	SaveSession(session SavedSession) error
	LoadSession() (SavedSession, error)
	DeleteSession() error
	UpsertUser(user models.User) error
	GetUser(stringID string) (models.User, error)
}

type Config struct {
	TokenExpiry time.Duration `json:"tokenExpiry"`
}

func (c *Config) Validate() error {
	if c.TokenExpiry < 0 {
		return errors.New("token expiry must not be negative")
	}
	if c.TokenExpiry == 0 {
		c.TokenExpiry = DefaultTokenExpiry
	}
	return nil
}

// Session is the logged in state of the client and the source of the current user's stringId.
type Session struct {
	Config
	backend Backend
	store   Store
	// liveTokens maps username to access token and forgets it after TokenExpiry.
	liveTokens geche.Geche[string, string]
	now        func() time.Time

	mu        sync.RWMutex
	username  string
	user      models.User
	expiresAt time.Time
}

func NewSession(ctx context.Context, config Config, backend Backend, store Store) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		Config:     config,
		backend:    backend,
		store:      store,
		liveTokens: geche.NewMapTTLCache[string, string](ctx, config.TokenExpiry, time.Minute),
		now:        time.Now,
	}, nil
}

func (s *Session) Login(ctx context.Context, username, password string) (models.User, error) {
	resp, err := s.backend.Login(ctx, models.LoginUser{Username: username, Password: password})
	if err != nil {
		return models.User{}, fmt.Errorf("login: %w", err)
	}
	return s.establish(ctx, username, resp.AccessToken)
}

func (s *Session) Register(ctx context.Context, email, username, password string) (models.User, error) {
	resp, err := s.backend.Register(ctx, models.RegisterUser{Email: email, Username: username, Password: password})
	if err != nil {
		return models.User{}, fmt.Errorf("register: %w", err)
	}
	return s.establish(ctx, username, resp.AccessToken)
}

func (s *Session) establish(ctx context.Context, username, token string) (models.User, error) {
	if token == "" {
		return models.User{}, errors.New("server returned an empty access token")
	}
	user, err := s.backend.Me(ctx, token)
	if err != nil {
		return models.User{}, fmt.Errorf("fetch current user: %w", err)
	}
	user.IsCurrentUser = true

	expiresAt := s.now().Add(s.TokenExpiry)
	if s.store != nil {
		if err := s.store.UpsertUser(user); err != nil {
			slog.Error("failed to store current user", "user_id", user.StringID, "error", err)
		}
		if err := s.store.SaveSession(SavedSession{
			Username:  username,
			Token:     token,
			UserID:    user.StringID,
			ExpiresAt: expiresAt,
		}); err != nil {
			return models.User{}, fmt.Errorf("save session: %w", err)
		}
	}

	s.activate(username, token, user, expiresAt)
	return user, nil
}

func (s *Session) activate(username, token string, user models.User, expiresAt time.Time) {
	s.liveTokens.Set(username, token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.username = username
	s.user = user
	s.expiresAt = expiresAt
}

// Restore resumes the session saved by a previous run.
func (s *Session) Restore(ctx context.Context) (models.User, error) {
	if s.store == nil {
		return models.User{}, ErrNotLoggedIn
	}
	saved, err := s.store.LoadSession()
	if errors.Is(err, models.ErrNotFound) {
		return models.User{}, ErrNotLoggedIn
	}
	if err != nil {
		return models.User{}, fmt.Errorf("load session: %w", err)
	}
	if !s.now().Before(saved.ExpiresAt) {
		_ = s.store.DeleteSession()
		return models.User{}, ErrSessionExpired
	}

	user, err := s.store.GetUser(saved.UserID)
	if err != nil {
		// The cached profile is gone; ask the server again.
		if user, err = s.backend.Me(ctx, saved.Token); err != nil {
			return models.User{}, fmt.Errorf("fetch current user: %w", err)
		}
	}
	user.IsCurrentUser = true

	s.activate(saved.Username, saved.Token, user, saved.ExpiresAt)
	return user, nil
}

// Token returns the access token of the active session.
func (s *Session) Token() (string, error) {
	s.mu.RLock()
	username, expiresAt := s.username, s.expiresAt
	s.mu.RUnlock()

	if username == "" {
		return "", ErrNotLoggedIn
	}
	if !s.now().Before(expiresAt) {
		return "", ErrSessionExpired
	}
	token, err := s.liveTokens.Get(username)
	if err != nil {
		return "", ErrSessionExpired
	}
	return token, nil
}

// CurrentUserID returns the stringId of the logged in user, or "" without a session.
func (s *Session) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.StringID
}

func (s *Session) CurrentUser() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.username != ""
}

func (s *Session) Logout() error {
	s.mu.Lock()
	username := s.username
	s.username = ""
	s.user = models.User{}
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if username != "" {
		_ = s.liveTokens.Del(username)
	}
	if s.store != nil {
		return s.store.DeleteSession()
	}
	return nil
}
