package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteUpsertCreatesThenOverwrites(t *testing.T) {
	db := newTestDB(t)
	repo := NewNoteRepository()

	created, err := repo.Upsert(db, 1, "diet", "More vegetables.")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	updated, err := repo.Upsert(db, 1, "diet", "More vegetables, less sugar.")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "More vegetables, less sugar.", updated.Content)

	notes, err := repo.ListByUser(db, 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
}

func TestNoteTitlesScopedPerUser(t *testing.T) {
	db := newTestDB(t)
	repo := NewNoteRepository()

	_, err := repo.Upsert(db, 1, "diet", "user one")
	require.NoError(t, err)
	_, err = repo.Upsert(db, 2, "diet", "user two")
	require.NoError(t, err)

	one, err := repo.ListByUser(db, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "user one", one[0].Content)
}

func TestNoteDeleteByTitle(t *testing.T) {
	db := newTestDB(t)
	repo := NewNoteRepository()

	_, err := repo.Upsert(db, 1, "diet", "content")
	require.NoError(t, err)

	affected, err := repo.DeleteByTitle(db, 1, "diet")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// 再删一次应无行受影响
	affected, err = repo.DeleteByTitle(db, 1, "diet")
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestEnsureUserIdempotent(t *testing.T) {
	db := newTestDB(t)
	repo := NewUserRepository()

	first, err := repo.EnsureUser(db, 7)
	require.NoError(t, err)
	assert.Equal(t, uint(7), first.ID)

	// 第二次不会改动既有行
	require.NoError(t, repo.UpdateProfile(db, 7, "Sam", ""))
	second, err := repo.EnsureUser(db, 7)
	require.NoError(t, err)
	assert.Equal(t, "Sam", second.DisplayName)
}
