package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailpilot/backend/internal/models"
	"github.com/mailpilot/backend/internal/testutil"
)

func TestNotes(t *testing.T) {
	pool := testutil.NewTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	userID, err := EnsureAccount(ctx, pool, "owner@example.com")
	require.NoError(t, err)

	t.Run("create and get round-trip", func(t *testing.T) {
		note := &models.Note{UserID: userID, Title: "Call Ann", Body: "About the Q2 budget"}
		require.NoError(t, CreateNote(ctx, pool, note))
		require.NotEmpty(t, note.ID)

		loaded, err := GetNoteByID(ctx, pool, userID, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "Call Ann", loaded.Title)
		assert.Equal(t, "About the Q2 budget", loaded.Body)
	})

	t.Run("update rewrites title and body", func(t *testing.T) {
		note := &models.Note{UserID: userID, Title: "Draft", Body: "v1"}
		require.NoError(t, CreateNote(ctx, pool, note))

		note.Title = "Final"
		note.Body = "v2"
		require.NoError(t, UpdateNote(ctx, pool, note))

		loaded, err := GetNoteByID(ctx, pool, userID, note.ID)
		require.NoError(t, err)
		assert.Equal(t, "Final", loaded.Title)
		assert.Equal(t, "v2", loaded.Body)
	})

	t.Run("update of a missing note reports not found", func(t *testing.T) {
		note := &models.Note{
			ID:     "00000000-0000-0000-0000-000000000000",
			UserID: userID,
			Title:  "Ghost",
		}
		err := UpdateNote(ctx, pool, note)
		assert.True(t, errors.Is(err, ErrNoteNotFound))
	})

	t.Run("list returns most recently updated first", func(t *testing.T) {
		listUserID, err := EnsureAccount(ctx, pool, "list@example.com")
		require.NoError(t, err)

		older := &models.Note{UserID: listUserID, Title: "Older"}
		require.NoError(t, CreateNote(ctx, pool, older))
		newer := &models.Note{UserID: listUserID, Title: "Newer"}
		require.NoError(t, CreateNote(ctx, pool, newer))

		older.Body = "touched"
		require.NoError(t, UpdateNote(ctx, pool, older))

		notes, err := GetNotesForUser(ctx, pool, listUserID, 50, 0)
		require.NoError(t, err)
		require.Len(t, notes, 2)
		assert.Equal(t, "Older", notes[0].Title)
	})

	t.Run("delete removes the note", func(t *testing.T) {
		note := &models.Note{UserID: userID, Title: "Temp"}
		require.NoError(t, CreateNote(ctx, pool, note))

		require.NoError(t, DeleteNote(ctx, pool, userID, note.ID))

		_, err := GetNoteByID(ctx, pool, userID, note.ID)
		assert.True(t, errors.Is(err, ErrNoteNotFound))
	})
}
