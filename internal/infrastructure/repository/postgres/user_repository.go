package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/medsync/medsync-server/internal/core/domain"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByToken(ctx context.Context, token string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, email, full_name, privacy_consent, privacy_consent_date, created_at
FROM users
WHERE api_token = $1
`, token)

	var user domain.User
	err := row.Scan(
		&user.ID, &user.Email, &user.FullName,
		&user.PrivacyConsent, &user.PrivacyConsentDate, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrUnauthorized, "get user by token", errors.New("unknown token"))
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) SetConsent(ctx context.Context, userID string, granted bool, at *time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE users
SET privacy_consent = $2, privacy_consent_date = $3
WHERE id = $1
`, userID, granted, at)
	if err != nil {
		return fmt.Errorf("set consent: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set consent rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrUnauthorized, "set consent", fmt.Errorf("user %s not found", userID))
	}
	return nil
}

// ClearToken invalidates the user's bearer token on logout.
func (r *UserRepository) ClearToken(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE users
SET api_token = NULL
WHERE id = $1
`, userID)
	if err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
