// Package session holds the logged-in identity explicitly instead of in
// ambient storage. A Session is the API client's token source and the input
// to capability checks.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/resolveit/escalation-monitor/internal/apiclient"
	"github.com/resolveit/escalation-monitor/internal/domain"
)

var ErrNotLoggedIn = errors.New("not logged in")

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*apiclient.LoginResponse, error)
}

type UserFetcher interface {
	Me(ctx context.Context) (*domain.User, error)
}

type Session struct {
	store TokenStore
	email string

	mu     sync.RWMutex
	user   domain.User
	expiry time.Time
}

func New(store TokenStore, email string) *Session {
	return &Session{store: store, email: strings.ToLower(strings.TrimSpace(email))}
}

// Token 每次都从 store 读取，登出或其他进程刷新 token 后立即生效
func (s *Session) Token(ctx context.Context) (string, error) {
	token, err := s.store.Get(ctx, s.email)
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

func (s *Session) Login(ctx context.Context, auth Authenticator, password string) error {
	resp, err := auth.Login(ctx, s.email, password)
	if err != nil {
		return err
	}
	if !resp.User.Role.Valid() {
		return fmt.Errorf("login returned unknown role %q", resp.User.Role)
	}

	expiry := TokenExpiry(resp.Token)
	var ttl time.Duration
	if !expiry.IsZero() && time.Until(expiry) > 0 {
		ttl = time.Until(expiry)
	}
	if err := s.store.Set(ctx, s.email, resp.Token, ttl); err != nil {
		return err
	}

	s.mu.Lock()
	s.user = resp.User
	s.expiry = expiry
	s.mu.Unlock()
	return nil
}

// Resume 使用 store 中已有的 token 恢复会话
func (s *Session) Resume(ctx context.Context, api UserFetcher) error {
	token, err := s.Token(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrNotLoggedIn
	}

	expiry := TokenExpiry(token)
	if !expiry.IsZero() && !time.Now().Before(expiry) {
		_ = s.store.Delete(ctx, s.email)
		return ErrNotLoggedIn
	}

	user, err := api.Me(ctx)
	if err != nil {
		if apiclient.IsAuthError(err) {
			_ = s.store.Delete(ctx, s.email)
			return ErrNotLoggedIn
		}
		return err
	}

	s.mu.Lock()
	s.user = *user
	s.expiry = expiry
	s.mu.Unlock()
	return nil
}

// Ensure 没有会话或 token 已过期时重新登录
func (s *Session) Ensure(ctx context.Context, auth Authenticator, password string, now time.Time) error {
	if s.LoggedIn() && !s.Expired(now) {
		return nil
	}
	return s.Login(ctx, auth, password)
}

func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.user = domain.User{}
	s.expiry = time.Time{}
	s.mu.Unlock()

	return s.store.Delete(ctx, s.email)
}

func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.ID != ""
}

func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.expiry.IsZero() && !now.Before(s.expiry)
}

func (s *Session) User() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Session) Role() domain.Role {
	return s.User().Role
}

func (s *Session) UserID() domain.ID {
	return s.User().ID
}

func (s *Session) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry
}

// TokenExpiry 读取 exp 声明，不校验签名（客户端没有密钥）；解析失败返回零值
func TokenExpiry(token string) time.Time {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
