package service

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/auth"
	"github.com/unionhall/triage-service/internal/config"
	"github.com/unionhall/triage-service/internal/domain"
	"github.com/unionhall/triage-service/internal/repository"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

func newAuthService() *AuthService {
	cfg := config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTLMinutes: 30, BcryptCost: 4}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes)
	return NewAuthService(repository.NewMemoryAccountRepository(), tokens, cfg, zap.NewNop())
}

func TestLogin_IssuesTokenForValidCredentials(t *testing.T) {
	svc := newAuthService()
	if _, err := svc.CreateAccount(context.Background(), "dana", "Dana Admin", "s3cret", domain.ActorAdmin); err != nil {
		t.Fatalf("create account: %v", err)
	}

	account, token, _, err := svc.Login(context.Background(), "dana", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if account.Actor != domain.ActorAdmin || account.Name != "Dana Admin" {
		t.Errorf("account = %+v", account)
	}
	if token == "" {
		t.Error("empty token")
	}
}

func TestLogin_RejectsWrongPassword(t *testing.T) {
	svc := newAuthService()
	if _, err := svc.CreateAccount(context.Background(), "dana", "Dana Admin", "s3cret", domain.ActorAdmin); err != nil {
		t.Fatalf("create account: %v", err)
	}
	_, _, _, err := svc.Login(context.Background(), "dana", "wrong")
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestLogin_RejectsUnknownAccount(t *testing.T) {
	svc := newAuthService()
	_, _, _, err := svc.Login(context.Background(), "ghost", "whatever")
	if !apperrors.HasCode(err, apperrors.CodeUnauthorized) {
		t.Fatalf("expected UNAUTHORIZED, got %v", err)
	}
}

func TestCreateAccount_RejectsNonConsoleActors(t *testing.T) {
	svc := newAuthService()
	for _, actor := range []domain.ActorType{domain.ActorAI, domain.ActorSystem} {
		_, err := svc.CreateAccount(context.Background(), "bot", "Bot", "pw", actor)
		if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
			t.Errorf("actor %s: expected INVALID_INPUT, got %v", actor, err)
		}
	}
}
