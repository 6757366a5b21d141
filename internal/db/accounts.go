package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureAccount resolves the mailbox owner's email to their account row id,
// creating the row on first contact. Emails are normalized to lowercase so
// the same owner never splits into two accounts. Contacts, notes and webhook
// events all hang off this id.
func EnsureAccount(ctx context.Context, pool *pgxpool.Pool, email string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	var accountID string
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email)
		VALUES ($1)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING id
	`, normalized).Scan(&accountID)
	if err != nil {
		return "", fmt.Errorf("failed to ensure account for %s: %w", normalized, err)
	}

	return accountID, nil
}
