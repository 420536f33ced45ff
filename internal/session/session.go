// Package session logs users in against the users collection and keeps
// their signed sessions in the session store.
package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_storefront/internal/cache"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/remote"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const DefaultTTL = 24 * time.Hour

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrAccountExists      = errors.New("an account with this email or username already exists")
)

// UserSource is the users collection of the backend.
type UserSource interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	CreateUser(ctx context.Context, user domain.User) (*domain.User, error)
}

type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Avatar    string
}

// Claims is the JWT payload of a session token.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) UserID() string {
	return c.Subject
}

func (c *Claims) IsAdmin() bool {
	return c.Role == domain.RoleAdmin
}

type Service struct {
	users    UserSource
	store    cache.SessionStore
	secret   []byte
	ttl      time.Duration
	hashCost int
	now      func() time.Time
	log      *zap.Logger
}

func NewService(users UserSource, store cache.SessionStore, secret string, ttl time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		users:    users,
		store:    store,
		secret:   []byte(secret),
		ttl:      ttl,
		hashCost: bcrypt.DefaultCost,
		now:      time.Now,
		log:      log,
	}
}

// Login matches login against username or email. An unreachable users
// collection fails the login with remote.ErrUnavailable.
func (s *Service) Login(ctx context.Context, login, password string) (*domain.Session, error) {
	user, err := s.findUser(ctx, login)
	if err != nil {
		return nil, err
	}
	if !user.IsActive || !passwordMatches(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return s.start(ctx, user)
}

// Register creates an active customer with a bcrypt-hashed password and
// logs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.Session, error) {
	users, err := s.listUsers(ctx)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, in.Email) || u.Username == in.Username {
			return nil, ErrAccountExists
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC().Format(time.RFC3339)
	created, err := s.users.CreateUser(ctx, domain.User{
		Username:  in.Username,
		Email:     in.Email,
		Password:  string(hash),
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
		Avatar:    in.Avatar,
		Role:      domain.RoleCustomer,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	var statusErr *remote.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusConflict {
		return nil, ErrAccountExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", zap.Int64("user_id", created.ID))
	return s.start(ctx, *created)
}

func (s *Service) start(ctx context.Context, user domain.User) (*domain.Session, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	token, err := s.sign(user, now, expires)
	if err != nil {
		return nil, err
	}

	session := &domain.Session{User: user.Public(), Token: token, ExpiresAt: expires}
	if err := s.store.SetSession(ctx, user.IDString(), session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.log.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("role", user.Role))
	return session, nil
}

// Authenticate verifies the token signature and expiry and that it is still
// the user's current session.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	session, err := s.store.GetSession(ctx, claims.UserID())
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Token != token || session.Expired(s.now()) {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Current returns the stored session of the user, refreshing the user
// record from the users collection when it is reachable.
func (s *Service) Current(ctx context.Context, userID string) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, userID)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Expired(s.now()) {
		_ = s.store.DeleteSession(ctx, userID)
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		s.log.Debug("refresh user failed, keeping session copy", zap.String("user_id", userID), zap.Error(err))
		return session, nil
	}
	session.User = user.Public()
	if err := s.store.SetSession(ctx, userID, session); err != nil {
		s.log.Warn("store refreshed session failed", zap.String("user_id", userID), zap.Error(err))
	}
	return session, nil
}

func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.store.DeleteSession(ctx, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.log.Info("user logged out", zap.String("user_id", userID))
	return nil
}

func (s *Service) listUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.log.Warn("list users failed", zap.Error(err))
		if errors.Is(err, remote.ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return users, nil
}

func (s *Service) findUser(ctx context.Context, login string) (domain.User, error) {
	users, err := s.listUsers(ctx)
	if err != nil {
		return domain.User{}, err
	}
	for _, u := range users {
		if u.Email == login || u.Username == login {
			return u, nil
		}
	}
	return domain.User{}, ErrInvalidCredentials
}

func (s *Service) sign(user domain.User, now, expires time.Time) (string, error) {
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.IDString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// passwordMatches accepts bcrypt hashes and, for collections that store
// them as is, plain passwords.
func passwordMatches(stored, given string) bool {
	if stored == "" {
		return false
	}
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}
