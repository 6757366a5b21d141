package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailpilot/backend/internal/models"
)

// ErrContactNotFound is returned when a requested contact cannot be found.
var ErrContactNotFound = errors.New("contact not found")

// SaveContact inserts or updates a contact, keyed by (user_id, email).
func SaveContact(ctx context.Context, pool *pgxpool.Pool, contact *models.Contact) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO contacts (user_id, name, email, phone, company)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, email) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			company = EXCLUDED.company,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`, contact.UserID, contact.Name, contact.Email, contact.Phone, contact.Company).Scan(
		&contact.ID,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}

	return nil
}

// GetContactByID returns a contact by its database ID, scoped to the user.
func GetContactByID(ctx context.Context, pool *pgxpool.Pool, userID, contactID string) (*models.Contact, error) {
	var contact models.Contact

	err := pool.QueryRow(ctx, `
		SELECT id, user_id, name, email, phone, company, created_at, updated_at
		FROM contacts
		WHERE user_id = $1 AND id = $2
	`, userID, contactID).Scan(
		&contact.ID,
		&contact.UserID,
		&contact.Name,
		&contact.Email,
		&contact.Phone,
		&contact.Company,
		&contact.CreatedAt,
		&contact.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrContactNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return &contact, nil
}

// GetContactsForUser returns the user's contacts ordered by name.
func GetContactsForUser(ctx context.Context, pool *pgxpool.Pool, userID string, limit, offset int) ([]*models.Contact, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, name, email, phone, company, created_at, updated_at
		FROM contacts
		WHERE user_id = $1
		ORDER BY name, email
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)

	if err != nil {
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		var contact models.Contact
		if err := rows.Scan(
			&contact.ID,
			&contact.UserID,
			&contact.Name,
			&contact.Email,
			&contact.Phone,
			&contact.Company,
			&contact.CreatedAt,
			&contact.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, &contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}

	return contacts, nil
}

// DeleteContact removes a contact scoped to the user.
func DeleteContact(ctx context.Context, pool *pgxpool.Pool, userID, contactID string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM contacts
		WHERE user_id = $1 AND id = $2
	`, userID, contactID)

	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrContactNotFound
	}

	return nil
}
