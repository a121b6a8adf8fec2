package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/auth"
	"github.com/unionhall/triage-service/internal/config"
	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/repository"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// AuthService issues console tokens for admins and proponents.
type AuthService struct {
	accounts repository.AccountRepository
	tokens   *auth.TokenManager
	cfg      config.AuthConfig
	logger   *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(accounts repository.AccountRepository, tokens *auth.TokenManager, cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	return &AuthService{accounts: accounts, tokens: tokens, cfg: cfg, logger: logger}
}

// Login verifies credentials and returns a signed bearer token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.Account, string, time.Time, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, "", time.Time{}, apperrors.NewInvalidInput("username and password are required", nil)
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(account.ID, account.Name, account.Actor)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return account, token, expiresAt, nil
}

// CreateAccount registers a new console account.
func (s *AuthService) CreateAccount(ctx context.Context, username, name, password string, actor domain.ActorType) (*domain.Account, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(name) == "" || password == "" {
		return nil, apperrors.NewInvalidInput("username, name and password are required", nil)
	}
	if actor != domain.ActorAdmin && actor != domain.ActorProponent {
		return nil, apperrors.NewInvalidInput("actor must be ADMIN or PROPONENT", nil)
	}

	hash, err := auth.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	account := &domain.Account{
		Username:     username,
		Name:         name,
		PasswordHash: hash,
		Actor:        actor,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, apperrors.MapError(err)
	}
	return account, nil
}

// EnsureBootstrapAdmin seeds the configured admin account when missing so a
// fresh deployment has a working console login.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context) error {
	if s.cfg.BootstrapAdminUser == "" || s.cfg.BootstrapAdminPass == "" {
		return nil
	}
	if _, err := s.accounts.GetByUsername(ctx, s.cfg.BootstrapAdminUser); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if _, err := s.CreateAccount(ctx, s.cfg.BootstrapAdminUser, s.cfg.BootstrapAdminUser,
		s.cfg.BootstrapAdminPass, domain.ActorAdmin); err != nil {
		return err
	}
	s.logger.Info("bootstrap admin account created", zap.String("username", s.cfg.BootstrapAdminUser))
	return nil
}
