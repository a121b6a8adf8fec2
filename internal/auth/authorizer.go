package auth

import (
	"context"

	"github.com/unionhall/triage-service/internal/audit"
	"github.com/unionhall/triage-service/internal/domain"
)

// OriginalTextAuthorizer decides who may read unredacted ticket text.
// Only admins and the system itself qualify; proponents and members work
// from the redacted form.
type OriginalTextAuthorizer struct{}

// NewOriginalTextAuthorizer constructs the authorizer.
func NewOriginalTextAuthorizer() *OriginalTextAuthorizer {
	return &OriginalTextAuthorizer{}
}

// CanViewOriginal reports whether the actor may read raw ticket text.
func (a *OriginalTextAuthorizer) CanViewOriginal(_ context.Context, actor audit.Actor, _ string) (bool, error) {
	switch actor.Type {
	case domain.ActorAdmin, domain.ActorSystem:
		return true, nil
	default:
		return false, nil
	}
}
