package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"identityhub/pkg/hash"
	"identityhub/pkg/logging"
	"identityhub/pkg/tokens"
	"identityhub/services/auth/internal/audit"
	"identityhub/services/auth/internal/models"
	"identityhub/services/auth/internal/repo"
)

var (
	// ErrInvalidCredentials is uniform for unknown user and wrong password,
	// callers must not be able to probe for user existence.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = tokens.ErrInvalidToken
	ErrTokenMismatch      = errors.New("refresh token mismatch")
	ErrUserExists         = errors.New("user already exist")
)

type EventPublisher interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

type AuditSink interface {
	Record(ctx context.Context, index, message string, userID uint, username string) error
}

type AuthService struct {
	Repo          *repo.GormRepo
	AccessSecret  []byte
	RefreshSecret []byte
	Events        EventPublisher
	Audit         AuditSink
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	UserID       uint
	Role         string
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register", "username", username)

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("register_failed", "reason", "cannot hash password", "error", err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		PasswordHash: pwHash,
		Role:         "user",
	}

	if err := s.Repo.CreateUserIfNotExists(ctx, &user); err != nil {
		if errors.Is(err, repo.ErrUserAlreadyExist) {
			l.Warn("register_failed", "reason", "user already exist")
			return nil, ErrUserExists
		}
		l.Error("register_failed", "error", err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	// placeholder row so first login goes through the same upsert path
	if err := s.Repo.UpsertRefreshToken(ctx, user.ID, "", "", time.Now()); err != nil {
		l.Error("register_failed", "reason", "cannot seed refresh row", "error", err)
		return nil, fmt.Errorf("seed refresh token row: %w", err)
	}

	s.publish(ctx, user.Username, map[string]interface{}{
		"type":     "user.registered",
		"user_id":  user.ID,
		"username": user.Username,
	})
	s.record(ctx, audit.IndexRegister, "register succeeded", user.ID, user.Username)

	l.Info("register_successful", "user_id", user.ID)
	return &user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login", "username", username)

	user, err := s.Repo.FindUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("login_failed", "reason", "unknown user")
			s.record(ctx, audit.IndexLogin, "login failed", 0, username)
			return nil, ErrInvalidCredentials
		}
		l.Error("login_failed", "error", err)
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login_failed", "reason", "password mismatch")
		s.record(ctx, audit.IndexLogin, "login failed", user.ID, username)
		return nil, ErrInvalidCredentials
	}

	accessExp := time.Now().Add(tokens.AccessTTL)
	accessToken, err := tokens.SignAccessToken(user.ID, user.Role, accessExp, s.AccessSecret)
	if err != nil {
		l.Error("login_failed", "error", err)
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshExp := time.Now().Add(tokens.RefreshTTL)
	refreshToken, err := tokens.SignRefreshToken(user.ID, refreshExp, s.RefreshSecret)
	if err != nil {
		l.Error("login_failed", "error", err)
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("decode freshly signed refresh token: %w", err)
	}

	// rotation on login: any previously issued refresh token dies here
	if err := s.Repo.UpsertRefreshToken(ctx, user.ID, tokens.Sha256Hex(refreshToken), claims.ID, refreshExp); err != nil {
		l.Error("login_failed", "error", err)
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	s.publish(ctx, user.Username, map[string]interface{}{
		"type":     "user.logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})
	s.record(ctx, audit.IndexLogin, "login succeeded", user.ID, username)

	l.Info("login_successful", "user_id", user.ID)
	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		UserID:       user.ID,
		Role:         user.Role,
	}, nil
}

// Refresh mints a new access token against a presented refresh token. The
// refresh token itself is not rotated on this path, only login rotates it.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		l.Warn("refresh_failed", "reason", "undecodable token", "error", err)
		return "", ErrInvalidToken
	}

	userID, err := claims.UserID()
	if err != nil {
		l.Warn("refresh_failed", "reason", "bad subject", "error", err)
		return "", ErrInvalidToken
	}

	row, err := s.Repo.FindActiveRefreshToken(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("refresh_failed", "reason", "no active token", "user_id", userID)
			return "", ErrTokenMismatch
		}
		l.Error("refresh_failed", "error", err)
		return "", fmt.Errorf("find refresh token: %w", err)
	}

	if row.TokenHash != tokens.Sha256Hex(refreshToken) {
		l.Warn("refresh_failed", "reason", "stored token differs", "user_id", userID)
		return "", ErrTokenMismatch
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if err != nil {
		l.Error("refresh_failed", "error", err)
		return "", fmt.Errorf("load user: %w", err)
	}

	accessToken, err := tokens.SignAccessToken(user.ID, user.Role, time.Now().Add(tokens.AccessTTL), s.AccessSecret)
	if err != nil {
		l.Error("refresh_failed", "error", err)
		return "", fmt.Errorf("sign access token: %w", err)
	}

	l.Info("refresh_successful", "user_id", userID)
	return accessToken, nil
}

// Logout revokes the user's refresh token. The presented access token keeps
// validating until its own expiry: access tokens are stateless and cannot
// be recalled, a trust window of up to one hour.
func (s *AuthService) Logout(ctx context.Context, accessToken string) (uint, string, error) {
	l := logging.FromContext(ctx).With("svc", "auth.logout")

	claims, err := tokens.AccessClaimsFromToken(accessToken, s.AccessSecret)
	if err != nil {
		l.Warn("logout_failed", "reason", "invalid access token", "error", err)
		return 0, "", ErrInvalidToken
	}

	userID, err := claims.UserID()
	if err != nil {
		l.Warn("logout_failed", "reason", "bad subject", "error", err)
		return 0, "", ErrInvalidToken
	}

	// events and audit records are keyed by username on every path
	username := ""
	if user, err := s.Repo.GetUserByID(ctx, userID); err == nil {
		username = user.Username
	} else {
		l.Warn("logout_user_lookup_failed", "error", err)
	}

	if err := s.Repo.RevokeRefreshToken(ctx, userID); err != nil {
		l.Error("logout_failed", "error", err)
		return 0, "", fmt.Errorf("revoke refresh token: %w", err)
	}

	key := username
	if key == "" {
		key = claims.Subject
	}
	s.publish(ctx, key, map[string]interface{}{
		"type":     "user.logged_out",
		"user_id":  userID,
		"username": username,
	})
	s.record(ctx, audit.IndexLogout, "logout succeeded", userID, username)

	l.Info("logout_successful", "user_id", userID)
	return userID, claims.Role, nil
}

// ModifyPassword re-hashes and persists; outstanding tokens stay valid.
func (s *AuthService) ModifyPassword(ctx context.Context, accessToken, newPassword string) error {
	l := logging.FromContext(ctx).With("svc", "auth.modify_password")

	claims, err := tokens.AccessClaimsFromToken(accessToken, s.AccessSecret)
	if err != nil {
		l.Warn("modify_password_failed", "reason", "invalid access token", "error", err)
		return ErrInvalidToken
	}

	userID, err := claims.UserID()
	if err != nil {
		return ErrInvalidToken
	}

	pwHash, err := hash.HashPassword(newPassword)
	if err != nil {
		l.Error("modify_password_failed", "error", err)
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.Repo.UpdatePasswordHash(ctx, userID, pwHash); err != nil {
		l.Error("modify_password_failed", "error", err)
		return fmt.Errorf("update password: %w", err)
	}

	l.Info("modify_password_successful", "user_id", userID)
	return nil
}

// Validate is a pure decode and expiry check, no store lookup. All decode
// failures collapse into ok=false.
func (s *AuthService) Validate(accessToken string) (uint, string, bool) {
	claims, err := tokens.AccessClaimsFromToken(accessToken, s.AccessSecret)
	if err != nil {
		return 0, "", false
	}
	userID, err := claims.UserID()
	if err != nil {
		return 0, "", false
	}
	return userID, claims.Role, true
}

func (s *AuthService) publish(ctx context.Context, key string, event map[string]interface{}) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishEvent(ctx, key, event); err != nil {
		logging.FromContext(ctx).Warn("event_publish_failed", "error", err)
	}
}

func (s *AuthService) record(ctx context.Context, index, message string, userID uint, username string) {
	if s.Audit == nil {
		return
	}
	if err := s.Audit.Record(ctx, index, message, userID, username); err != nil {
		logging.FromContext(ctx).Warn("audit_record_failed", "index", index, "error", err)
	}
}
