package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailpilot/backend/internal/models"
)

// ErrNoteNotFound is returned when a requested note cannot be found.
var ErrNoteNotFound = errors.New("note not found")

// CreateNote inserts a new note and fills in the generated fields.
func CreateNote(ctx context.Context, pool *pgxpool.Pool, note *models.Note) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO notes (user_id, title, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, note.UserID, note.Title, note.Body).Scan(
		&note.ID,
		&note.CreatedAt,
		&note.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

// UpdateNote rewrites a note's title and body, scoped to the user.
func UpdateNote(ctx context.Context, pool *pgxpool.Pool, note *models.Note) error {
	err := pool.QueryRow(ctx, `
		UPDATE notes
		SET title = $3, body = $4, updated_at = NOW()
		WHERE user_id = $1 AND id = $2
		RETURNING updated_at
	`, note.UserID, note.ID, note.Title, note.Body).Scan(&note.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNoteNotFound
	}

	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	return nil
}

// GetNoteByID returns a note by its database ID, scoped to the user.
func GetNoteByID(ctx context.Context, pool *pgxpool.Pool, userID, noteID string) (*models.Note, error) {
	var note models.Note

	err := pool.QueryRow(ctx, `
		SELECT id, user_id, title, body, created_at, updated_at
		FROM notes
		WHERE user_id = $1 AND id = $2
	`, userID, noteID).Scan(
		&note.ID,
		&note.UserID,
		&note.Title,
		&note.Body,
		&note.CreatedAt,
		&note.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoteNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}

	return &note, nil
}

// GetNotesForUser returns the user's notes, most recently updated first.
func GetNotesForUser(ctx context.Context, pool *pgxpool.Pool, userID string, limit, offset int) ([]*models.Note, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, user_id, title, body, created_at, updated_at
		FROM notes
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)

	if err != nil {
		return nil, fmt.Errorf("failed to get notes: %w", err)
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		var note models.Note
		if err := rows.Scan(
			&note.ID,
			&note.UserID,
			&note.Title,
			&note.Body,
			&note.CreatedAt,
			&note.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, &note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	return notes, nil
}

// DeleteNote removes a note scoped to the user.
func DeleteNote(ctx context.Context, pool *pgxpool.Pool, userID, noteID string) error {
	tag, err := pool.Exec(ctx, `
		DELETE FROM notes
		WHERE user_id = $1 AND id = $2
	`, userID, noteID)

	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrNoteNotFound
	}

	return nil
}
