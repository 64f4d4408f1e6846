package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"gorm.io/gorm"

	"identityhub/pkg/authrpc"
	"identityhub/pkg/logging"
	"identityhub/services/resource/internal/models"
	"identityhub/services/resource/internal/repo"
)

var (
	ErrValidation   = errors.New("invalid username or password format")
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	ErrUnauthorized = errors.New("unauthorized")
)

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9._]{3,20}$`)

	// one check per character class, the full rule would need lookaheads
	passwordLowerRe   = regexp.MustCompile(`[a-z]`)
	passwordUpperRe   = regexp.MustCompile(`[A-Z]`)
	passwordDigitRe   = regexp.MustCompile(`\d`)
	passwordSpecialRe = regexp.MustCompile(`[@$!%*?&]`)
	passwordCharsRe   = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]+$`)
)

// IdentityClient is the RPC surface of the identity service as the
// resource process consumes it.
type IdentityClient interface {
	ValidateToken(ctx context.Context, accessToken string) (*authrpc.TokenResponse, error)
	RegisterUser(ctx context.Context, username, password string) (*authrpc.UserResponse, error)
	LoginUser(ctx context.Context, username, password string) (*authrpc.LoginUserResponse, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*authrpc.RefreshTokenResponse, error)
	LogoutUser(ctx context.Context, accessToken string) (*authrpc.TokenResponse, error)
	ModifyPassword(ctx context.Context, accessToken, password string) (*authrpc.ModifyPasswordResponse, error)
}

type UserService struct {
	Repo *repo.GormRepo
	Auth IdentityClient
}

func validPassword(password string) bool {
	return len(password) >= 8 &&
		passwordCharsRe.MatchString(password) &&
		passwordLowerRe.MatchString(password) &&
		passwordUpperRe.MatchString(password) &&
		passwordDigitRe.MatchString(password) &&
		passwordSpecialRe.MatchString(password)
}

// Register validates locally, registers remotely, then mirrors id+username.
func (s *UserService) Register(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "resource.register", "username", username)

	if !usernameRe.MatchString(username) || !validPassword(password) {
		return nil, ErrValidation
	}

	if _, err := s.Repo.FindUserByUsername(ctx, username); err == nil {
		return nil, ErrUserExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	res, err := s.Auth.RegisterUser(ctx, username, password)
	if err != nil {
		l.Error("register_rpc_failed", "error", err)
		return nil, fmt.Errorf("register over rpc: %w", err)
	}
	if res.ID == 0 {
		// the wire collapses every failure into a zero payload, so a remote
		// internal error is indistinguishable from a duplicate username here
		l.Warn("register_refused_by_identity_service")
		return nil, ErrUserExists
	}

	user := models.User{UserID: res.ID, Username: res.Username}
	if err := s.Repo.CreateUser(ctx, &user); err != nil {
		l.Error("register_mirror_failed", "error", err)
		return nil, fmt.Errorf("mirror user: %w", err)
	}

	l.Info("register_successful", "user_id", user.UserID)
	return &user, nil
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
}

func (s *UserService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	l := logging.FromContext(ctx).With("svc", "resource.login", "username", username)

	if _, err := s.Repo.FindUserByUsername(ctx, username); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	res, err := s.Auth.LoginUser(ctx, username, password)
	if err != nil {
		l.Error("login_rpc_failed", "error", err)
		return nil, fmt.Errorf("login over rpc: %w", err)
	}
	if !res.IsValid {
		return nil, ErrUnauthorized
	}

	l.Info("login_successful")
	return &LoginResult{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken}, nil
}

func (s *UserService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	res, err := s.Auth.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return "", fmt.Errorf("refresh over rpc: %w", err)
	}
	if !res.IsValid {
		return "", ErrUnauthorized
	}
	return res.AccessToken, nil
}

func (s *UserService) Logout(ctx context.Context, accessToken string) (uint, error) {
	res, err := s.Auth.LogoutUser(ctx, accessToken)
	if err != nil {
		return 0, fmt.Errorf("logout over rpc: %w", err)
	}
	if !res.IsValid {
		return 0, ErrUnauthorized
	}
	return res.UserID, nil
}

func (s *UserService) ModifyPassword(ctx context.Context, accessToken, password string) error {
	if !validPassword(password) {
		return ErrValidation
	}

	res, err := s.Auth.ModifyPassword(ctx, accessToken, password)
	if err != nil {
		return fmt.Errorf("modify password over rpc: %w", err)
	}
	if !res.IsValid {
		return ErrUnauthorized
	}
	return nil
}
