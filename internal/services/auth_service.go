package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jyotish-chat/config"
	"jyotish-chat/internal/domain/chat"
	chat_errors "jyotish-chat/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService verifies the bearer tokens issued by the account service. It never
// issues long-lived credentials itself; IssueAccessToken exists for tooling and tests.
type AuthService struct {
	jwtSecret []byte
	now       func() time.Time
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{jwtSecret: []byte(cfg.JWTSecret), now: time.Now}
}

type AccessClaims struct {
	UserID string    `json:"id"`
	Role   chat.Role `json:"role"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, chat_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return AccessClaims{}, fmt.Errorf("%w: %v", chat_errors.ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, chat_errors.ErrUnauthorized
	}

	return *claims, nil
}

// Authenticate turns a bearer token into the identity bound to a connection.
func (s *AuthService) Authenticate(tokenString string) (chat.Identity, error) {
	claims, err := s.ParseAccessToken(tokenString)
	if err != nil {
		return chat.Identity{}, err
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return chat.Identity{}, chat_errors.ErrUnauthorized
	}
	return chat.Identity{ID: claims.UserID, Role: claims.Role}, nil
}

func (s *AuthService) IssueAccessToken(identity chat.Identity, ttl time.Duration) (string, error) {
	now := s.now()
	claims := AccessClaims{
		UserID: identity.ID,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, chat_errors.ErrInvalidInput):
		return 400
	case errors.Is(err, chat_errors.ErrUnauthorized):
		return 401
	case errors.Is(err, chat_errors.ErrForbidden):
		return 403
	case errors.Is(err, chat_errors.ErrNotFound):
		return 404
	case errors.Is(err, chat_errors.ErrAlreadyExists):
		return 409
	case errors.Is(err, chat_errors.ErrRateLimited):
		return 429
	case errors.Is(err, chat_errors.ErrUpstream):
		return 502
	default:
		return 500
	}
}

type ctxKey string

var identityIDKey ctxKey = "identity_id"
var identityRoleKey ctxKey = "identity_role"

func WithIdentity(ctx context.Context, identity chat.Identity) context.Context {
	ctx = context.WithValue(ctx, identityIDKey, identity.ID)
	ctx = context.WithValue(ctx, identityRoleKey, identity.Role)
	return ctx
}

func IdentityFromContext(ctx context.Context) (chat.Identity, bool) {
	id, ok := ctx.Value(identityIDKey).(string)
	if !ok || id == "" {
		return chat.Identity{}, false
	}
	role, _ := ctx.Value(identityRoleKey).(chat.Role)
	return chat.Identity{ID: id, Role: role}, true
}
