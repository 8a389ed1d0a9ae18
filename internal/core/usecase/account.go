package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medsync/medsync-server/internal/core/domain"
	"github.com/medsync/medsync-server/internal/core/ports"
)

// AccountUseCase resolves the authenticated session context and handles
// consent grant/withdrawal and sign-out.
type AccountUseCase struct {
	users ports.UserRepository
	now   func() time.Time
}

func NewAccountUseCase(users ports.UserRepository) *AccountUseCase {
	return &AccountUseCase{users: users, now: time.Now}
}

func (uc *AccountUseCase) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Session{}, domain.WrapError(domain.ErrUnauthorized, "authenticate", fmt.Errorf("missing token"))
	}
	user, err := uc.users.GetByToken(ctx, token)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{User: *user}, nil
}

func (uc *AccountUseCase) Me(_ context.Context, sess domain.Session) (*domain.User, error) {
	user := sess.User
	return &user, nil
}

// SetConsent grants or withdraws privacy consent; withdrawal also clears the
// consent timestamp.
func (uc *AccountUseCase) SetConsent(ctx context.Context, sess domain.Session, granted bool) (*domain.User, error) {
	var at *time.Time
	if granted {
		now := uc.now().UTC()
		at = &now
	}
	if err := uc.users.SetConsent(ctx, sess.User.ID, granted, at); err != nil {
		return nil, fmt.Errorf("update consent: %w", err)
	}

	user := sess.User
	user.PrivacyConsent = granted
	user.PrivacyConsentDate = at
	return &user, nil
}

func (uc *AccountUseCase) Logout(ctx context.Context, sess domain.Session) error {
	if err := uc.users.ClearToken(ctx, sess.User.ID); err != nil {
		return fmt.Errorf("clear auth token: %w", err)
	}
	return nil
}
