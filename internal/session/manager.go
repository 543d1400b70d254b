package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vk/flowdash/internal/access"
	"github.com/vk/flowdash/internal/clock"
)

var (
	// ErrInvalidCredentials is returned by Login for a malformed email or an
	// empty password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when a bearer token fails verification.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	// DefaultTTL is how long an issued token stays valid.
	DefaultTTL = 8 * time.Hour
	// DefaultLoginLatency is the delay the mock identity provider adds to
	// every login.
	DefaultLoginLatency = 500 * time.Millisecond
)

// claims is the JWT payload.
type claims struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  access.Role `json:"role"`
	jwt.RegisteredClaims
}

// Result is a successful login.
type Result struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// Manager issues and verifies session tokens.
type Manager struct {
	secret  []byte
	store   Store
	ttl     time.Duration
	latency time.Duration
	clock   clock.Clock
	logger  *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

// WithLoginLatency overrides DefaultLoginLatency. Zero disables the delay.
func WithLoginLatency(d time.Duration) Option {
	return func(m *Manager) { m.latency = d }
}

// WithClock sets the time source for token issuance and verification.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager signing with secret and tracking sessions in store.
func NewManager(secret []byte, store Store, opts ...Option) (*Manager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session secret cannot be empty")
	}
	if store == nil {
		return nil, fmt.Errorf("session store cannot be nil")
	}
	m := &Manager{
		secret:  secret,
		store:   store,
		ttl:     DefaultTTL,
		latency: DefaultLoginLatency,
		clock:   clock.New(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", m.ttl)
	}
	return m, nil
}

// Login authenticates email against the mock identity provider. Any
// non-empty password is accepted; the role comes from the address.
func (m *Manager) Login(ctx context.Context, email, password string) (*Result, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	user, err := identify(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}

	now := m.clock.Now()
	expires := now.Add(m.ttl)
	tokenID := uuid.NewString()
	c := claims{
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	if err := m.store.Save(ctx, Record{ID: tokenID, User: user}, m.ttl); err != nil {
		return nil, err
	}

	m.logger.Info("User logged in.", "userId", user.ID, "role", user.Role)
	return &Result{Token: signed, ExpiresAt: expires, User: user}, nil
}

// Authenticate verifies token and returns its user. A token that verifies
// but whose session was revoked yields ErrSessionNotFound.
func (m *Manager) Authenticate(ctx context.Context, token string) (*User, error) {
	c, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	rec, err := m.store.Load(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	u := rec.User
	return &u, nil
}

// Logout revokes the session behind token.
func (m *Manager) Logout(ctx context.Context, token string) error {
	c, err := m.parse(token)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, c.ID); err != nil {
		return err
	}
	m.logger.Info("User logged out.", "userId", c.Subject)
	return nil
}

func (m *Manager) parse(token string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.clock.Now))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", ErrInvalidToken)
	}
	return &c, nil
}

func (m *Manager) wait(ctx context.Context) error {
	if m.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(m.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// identify builds the mock identity for email. Addresses containing "admin"
// get the admin role, those containing "analyst" get analyst, the rest are
// viewers.
func identify(email string) (User, error) {
	email = strings.TrimSpace(email)
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return User{}, fmt.Errorf("%w: %q is not an email address", ErrInvalidCredentials, email)
	}

	lower := strings.ToLower(email)
	role := access.RoleViewer
	switch {
	case strings.Contains(lower, "admin"):
		role = access.RoleAdmin
	case strings.Contains(lower, "analyst"):
		role = access.RoleAnalyst
	}

	return User{
		ID:    uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+lower)).String(),
		Name:  local,
		Email: email,
		Role:  role,
	}, nil
}
