// Package session implements the login/session bootstrap collaborator. It
// authenticates exclusively through the user store manager and keeps a signed
// token in the session slot; it never touches the users slot directly.
package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/mfsolucoes/backoffice/internal/common"
	"github.com/mfsolucoes/backoffice/internal/logging"
	"github.com/mfsolucoes/backoffice/internal/shared"
	"github.com/mfsolucoes/backoffice/internal/storage"
	"github.com/mfsolucoes/backoffice/internal/users"
)

type Service struct {
	store storage.Store
	users *users.Manager
	log   logging.Logger
	ttl   time.Duration
}

func NewService(store storage.Store, manager *users.Manager, log logging.Logger, ttl time.Duration) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service{store: store, users: manager, log: log.With("component", "session"), ttl: ttl}
}

// Bootstrap runs the startup integrity check and repairs the collection when
// it is not OK, mirroring what every page load of the original did.
func (s *Service) Bootstrap(ctx context.Context) error {
	report := s.users.CheckIntegrity(ctx)
	s.log.Info(ctx, "user store integrity",
		"total", report.Total, "ok", report.OK, "adminExists", report.AdminExists)

	if report.OK {
		return nil
	}

	s.log.Warn(ctx, "integrity problems detected, repairing")
	return s.users.Repair(ctx)
}

// SignIn validates the credentials and opens a session. Inactive accounts are
// refused even with a correct secret.
func (s *Service) SignIn(ctx context.Context, email, senha string) (*users.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, common.ErrInvalidCredentials
	}

	if subtle.ConstantTimeCompare([]byte(senha), []byte(u.Senha)) != 1 {
		s.log.Warn(ctx, "sign-in rejected", "email", email)
		return nil, common.ErrInvalidCredentials
	}

	if !u.Ativo {
		return nil, common.ErrInactiveAccount
	}

	key, err := s.signingKey(ctx)
	if err != nil {
		return nil, err
	}

	token, err := GenerateToken(u.ID, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	if err := s.store.Set(ctx, common.SlotSession, token); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	s.log.Info(ctx, "session opened", "id", u.ID)
	return u, nil
}

// Current resolves the user of the active session.
func (s *Service) Current(ctx context.Context) (*users.User, error) {
	token, ok, err := s.store.Get(ctx, common.SlotSession)
	if err != nil || !ok || token == "" {
		return nil, common.ErrNoSession
	}

	key, err := s.signingKey(ctx)
	if err != nil {
		return nil, err
	}

	userID, err := GetUserIDFromToken(token, key)
	if err != nil {
		return nil, common.ErrInvalidToken
	}

	return s.users.FindByID(ctx, userID)
}

// SignOut clears the session slot.
func (s *Service) SignOut(ctx context.Context) error {
	return s.store.Delete(ctx, common.SlotSession)
}

// signingKey returns the per-installation token key, generating and
// persisting it on first use.
func (s *Service) signingKey(ctx context.Context) ([]byte, error) {
	key, ok, err := s.store.Get(ctx, common.SlotSessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read session key: %w", err)
	}
	if ok && key != "" {
		return []byte(key), nil
	}

	generated, err := shared.MakeRandHexString(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}
	if err := s.store.Set(ctx, common.SlotSessionKey, generated); err != nil {
		return nil, fmt.Errorf("failed to store session key: %w", err)
	}
	return []byte(generated), nil
}
