// Package session определяет сессию по bearer-токену и роль пользователя.
// Результат фиксируется в Principal один раз на запрос и дальше не меняется.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fieldTasks/internal/logger"
	"fieldTasks/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Role string

const RoleStaff Role = "staff"
const RoleAdmin Role = "admin"

const issuer = "fieldTasks"

var (
	ErrNoSession    = errors.New("сессия отсутствует")
	ErrInvalidToken = errors.New("недействительный токен")
	ErrNoRole       = errors.New("роль пользователя не найдена")
	ErrForbidden    = errors.New("недостаточно прав")
)

type Session struct {
	UserID    uuid.UUID
	ExpiresAt time.Time
}

type Principal struct {
	UserID     uuid.UUID
	Role       Role
	ResolvedAt time.Time
}

type RoleStore interface {
	GetUserRole(ctx context.Context, userID uuid.UUID) (Role, error)
}

type Provider struct {
	secret []byte
	roles  RoleStore
	now    func() time.Time
}

func NewProvider(secret string, roles RoleStore) (*Provider, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("секрет JWT короче 16 символов")
	}
	return &Provider{
		secret: []byte(secret),
		roles:  roles,
		now:    time.Now,
	}, nil
}

// Issue выпускает токен, нужен для входа и тестов
func (p *Provider) Issue(userID uuid.UUID, ttl time.Duration) (string, error) {
	now := p.now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("подпись токена: %w", err)
	}
	return signed, nil
}

func (p *Provider) CurrentSession(r *http.Request) (*Session, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, ErrNoSession
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims,
		func(*jwt.Token) (any, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}

	return &Session{UserID: userID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

func (p *Provider) UserRole(ctx context.Context, userID uuid.UUID) (Role, error) {
	role, err := p.roles.GetUserRole(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNoRole
		}
		return "", fmt.Errorf("получение роли: %w", err)
	}
	return role, nil
}

// Resolve определяет пользователя и требует нужную роль
func (p *Provider) Resolve(r *http.Request, required Role) (Principal, error) {
	sess, err := p.CurrentSession(r)
	if err != nil {
		return Principal{}, err
	}

	role, err := p.UserRole(r.Context(), sess.UserID)
	if err != nil {
		return Principal{}, err
	}

	if role != required {
		logger.Warn("Session: Роль не подходит",
			zap.String("user_id", sess.UserID.String()),
			zap.String("role", string(role)),
			zap.String("required", string(required)))
		return Principal{}, ErrForbidden
	}

	return Principal{UserID: sess.UserID, Role: role, ResolvedAt: p.now()}, nil
}

type contextKey struct{}

func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, principal)
}

func FromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(contextKey{}).(Principal)
	return principal, ok
}
