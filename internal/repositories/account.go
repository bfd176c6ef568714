package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
)

// Account retrieves a streaming account by id.
func (s *SQLiteStore) Account(ctx context.Context, id string) (*models.Account, error) {
	query := `
		SELECT id, provider_user_id, slack_user_id, access_token, refresh_token, access_token_expires, refresh_token_expires
		FROM accounts
		WHERE id = ?
	`

	var (
		account             models.Account
		accessTokenExpires  sql.NullTime
		refreshTokenExpires sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&account.ID,
		&account.ProviderUserID,
		&account.SlackUserID,
		&account.AccessToken,
		&account.RefreshToken,
		&accessTokenExpires,
		&refreshTokenExpires,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account %s", shared.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if accessTokenExpires.Valid {
		account.AccessTokenExpires = accessTokenExpires.Time
	}
	if refreshTokenExpires.Valid {
		account.RefreshTokenExpires = refreshTokenExpires.Time
	}
	return &account, nil
}

// SaveAccount inserts a new account or overwrites an existing one by id.
// Token refreshes go through here, so the write must be a full overwrite.
func (s *SQLiteStore) SaveAccount(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = shared.GenerateID()
	}

	now := time.Now()
	query := `
		INSERT INTO accounts (id, provider_user_id, slack_user_id, access_token, refresh_token, access_token_expires, refresh_token_expires, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			provider_user_id = excluded.provider_user_id,
			slack_user_id = excluded.slack_user_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			access_token_expires = excluded.access_token_expires,
			refresh_token_expires = excluded.refresh_token_expires,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		account.ID,
		account.ProviderUserID,
		account.SlackUserID,
		account.AccessToken,
		account.RefreshToken,
		nullTime(account.AccessTokenExpires),
		nullTime(account.RefreshTokenExpires),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
