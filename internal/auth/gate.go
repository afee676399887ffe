// Package auth admits connections: it turns a bearer token into a verified
// identity and the role that identity plays.
package auth

import (
	"context"
	"errors"

	"github.com/dkeye/Multiview/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrSubjectNotFound is returned by a Directory when no user matches the subject.
var ErrSubjectNotFound = errors.New("subject not found")

// TokenVerifier checks a token and returns the subject it was issued for.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (subject string, err error)
}

// Directory loads the profile behind a verified subject.
type Directory interface {
	LoadIdentity(ctx context.Context, subject string) (domain.Identity, error)
}

type Gate struct {
	verifier  TokenVerifier
	directory Directory
}

func NewGate(verifier TokenVerifier, directory Directory) *Gate {
	return &Gate{verifier: verifier, directory: directory}
}

// Admit validates the token and resolves identity and role. Every failure is a
// *domain.Error with one of the admission kinds.
func (g *Gate) Admit(ctx context.Context, token string) (domain.Identity, domain.Role, error) {
	if token == "" {
		return domain.Identity{}, "", domain.Unauthenticated("no token provided")
	}

	subject, err := g.verifier.VerifyToken(ctx, token)
	if err != nil {
		log.Warn().Str("module", "auth.gate").Err(err).Msg("token rejected")
		return domain.Identity{}, "", domain.InvalidToken("token rejected").
			WithDetail("reason", err.Error()).
			WithCause(err)
	}

	identity, err := g.directory.LoadIdentity(ctx, subject)
	switch {
	case errors.Is(err, ErrSubjectNotFound):
		log.Warn().Str("module", "auth.gate").Str("subject", subject).Msg("unknown subject")
		return domain.Identity{}, "", domain.UnknownSubject("no user for subject %s", subject).WithCause(err)
	case err != nil:
		log.Error().Str("module", "auth.gate").Str("subject", subject).Err(err).Msg("directory lookup failed")
		return domain.Identity{}, "", domain.Internal("identity lookup failed").WithCause(err)
	}

	role, err := domain.RoleFor(identity.Privilege)
	if err != nil {
		return domain.Identity{}, "", domain.UnknownSubject("user %s has no usable privilege", subject).
			WithDetail("privilege", string(identity.Privilege)).
			WithCause(err)
	}

	log.Info().Str("module", "auth.gate").Str("user", identity.ID).Str("role", string(role)).Msg("admitted")
	return identity, role, nil
}
