package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/upcoming/internal/models"
)

// CredentialRepository stores one OAuth token per catalog service.
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository creates a new CredentialRepository with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Load retrieves the stored token for service.
func (r *CredentialRepository) Load(ctx context.Context, service string) (*models.Credential, error) {
	var (
		cred      models.Credential
		expiresAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT service, access_token, refresh_token, token_type, expires_at, updated_at
		FROM credentials
		WHERE service = ?
	`, service).Scan(&cred.Service, &cred.AccessToken, &cred.RefreshToken, &cred.TokenType, &expiresAt, &cred.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "credential", service)
	}

	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time
	}
	return &cred, nil
}

// Save replaces the stored token for the credential's service.
func (r *CredentialRepository) Save(ctx context.Context, cred *models.Credential) error {
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	cred.UpdatedAt = time.Now()
	if cred.TokenType == "" {
		cred.TokenType = "Bearer"
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO credentials (service, access_token, refresh_token, token_type, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, cred.Service, cred.AccessToken, cred.RefreshToken, cred.TokenType, nullTime(&cred.ExpiresAt), cred.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	return nil
}

// Delete removes the stored token for service.
func (r *CredentialRepository) Delete(ctx context.Context, service string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE service = ?`, service)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return requireRow(result, "credential", service)
}
