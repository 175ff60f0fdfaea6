package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultTokenTTL = 60 * time.Minute

	audienceAPI   = "api"
	audienceAdmin = "admin"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// UserLookup loads a user with roles by username.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}

type Service struct {
	users  UserLookup
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(users UserLookup, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Authenticate checks the password with bcrypt and issues an API token.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, string, error) {
	user, err := s.CheckPassword(ctx, username, password)
	if err != nil {
		return nil, "", err
	}
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// CheckPassword verifies credentials without issuing a token.
func (s *Service) CheckPassword(ctx context.Context, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

type Claims struct {
	UserID  int64 `json:"uid"`
	Manager bool  `json:"mgr"`
	jwt.RegisteredClaims
}

// IssueToken signs an API access token valid for the service TTL.
func (s *Service) IssueToken(user *User) (string, error) {
	return s.issue(user, audienceAPI, s.ttl)
}

// IssueSessionToken signs the value of the admin session cookie.
func (s *Service) IssueSessionToken(user *User, ttl time.Duration) (string, error) {
	return s.issue(user, audienceAdmin, ttl)
}

func (s *Service) issue(user *User, audience string, ttl time.Duration) (string, error) {
	now := s.now().UTC()
	claims := Claims{
		UserID:  user.ID,
		Manager: IsManager(user),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(s.secret)
}

// ParseToken validates signature, algorithm and expiry of an API token.
func (s *Service) ParseToken(tokenStr string) (*Claims, error) {
	return s.parse(tokenStr, audienceAPI)
}

func (s *Service) parse(tokenStr, audience string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Resolve parses an API token and loads its user with current roles. The
// manager flag embedded in the token is ignored.
func (s *Service) Resolve(ctx context.Context, tokenStr string) (*User, error) {
	return s.resolve(ctx, tokenStr, audienceAPI)
}

// ResolveSession is Resolve for admin session cookies.
func (s *Service) ResolveSession(ctx context.Context, tokenStr string) (*User, error) {
	return s.resolve(ctx, tokenStr, audienceAdmin)
}

func (s *Service) resolve(ctx context.Context, tokenStr, audience string) (*User, error) {
	claims, err := s.parse(tokenStr, audience)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetByUsername(ctx, claims.Subject)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}
