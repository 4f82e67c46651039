package repository

import (
	"context"
	"strings"
	"testing"
	"time"

	"pianote/internal/domain"

	"github.com/stretchr/testify/require"
)

func createTestNote(t *testing.T, createdBy, name string, at time.Time) *domain.Note {
	t.Helper()
	note := &domain.Note{
		ID:          domain.NewObjectID(),
		Name:        name,
		Genres:      []string{"classical", "romantic"},
		Composer:    "Chopin",
		Description: "Op. 9",
		Level:       domain.LevelIntermediate,
		Rate:        4.5,
		CreatedBy:   createdBy,
		CreatedAt:   at,
	}
	require.NoError(t, NewNoteRepository(testDB).Create(context.Background(), note))
	return note
}

func noteIDs(notes []*domain.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.ID)
	}
	return out
}

func TestNoteRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewNoteRepository(testDB)
	author := createTestUser(t, "Clara Composer")

	note := createTestNote(t, author.ID, "Nocturne", now())

	found, err := repo.FindByID(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, note.Name, found.Name)
	require.Equal(t, []string{"classical", "romantic"}, found.Genres)
	require.Equal(t, domain.LevelIntermediate, found.Level)
	require.Equal(t, 4.5, found.Rate)
	require.Equal(t, author.ID, found.CreatedBy)
	require.True(t, note.CreatedAt.Equal(found.CreatedAt))
	require.False(t, found.DeleteFlag)

	_, err = repo.FindByID(ctx, domain.NewObjectID())
	require.ErrorIs(t, err, ErrNoteNotFound)
}

func TestNoteRepository_RejectsOutOfRangeLevel(t *testing.T) {
	author := createTestUser(t, "Clara Composer")
	note := &domain.Note{
		ID:        domain.NewObjectID(),
		Name:      "Bad level",
		Genres:    []string{"jazz"},
		Composer:  "Evans",
		Level:     4,
		CreatedBy: author.ID,
		CreatedAt: now(),
	}
	require.Error(t, NewNoteRepository(testDB).Create(context.Background(), note))
}

func TestNoteRepository_SearchIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	repo := NewNoteRepository(testDB)
	author := createTestUser(t, "Clara Composer")
	tag := domain.NewObjectID()[:10]

	older := createTestNote(t, author.ID, "Moonlight SONATA "+tag, now().Add(-time.Minute))
	newer := createTestNote(t, author.ID, "sonatina "+tag, now())
	createTestNote(t, author.ID, "Clair de lune "+tag, now())

	found, err := repo.List(ctx, NoteFilter{NameContains: "Sonat"})
	require.NoError(t, err)
	require.Subset(t, noteIDs(found), []string{older.ID, newer.ID})

	found, err = repo.List(ctx, NoteFilter{NameContains: "SONAT% " + tag})
	require.NoError(t, err)
	require.Empty(t, found)

	found, err = repo.List(ctx, NoteFilter{NameContains: "sonat"})
	require.NoError(t, err)
	var mine []string
	for _, n := range found {
		if n.ID == older.ID || n.ID == newer.ID {
			mine = append(mine, n.ID)
		}
	}
	require.Equal(t, []string{newer.ID, older.ID}, mine)
}

func TestNoteRepository_SearchMatchesWildcardsLiterally(t *testing.T) {
	ctx := context.Background()
	repo := NewNoteRepository(testDB)
	author := createTestUser(t, "Clara Composer")
	tag := domain.NewObjectID()[:10]

	percent := createTestNote(t, author.ID, "100% Blues "+tag, now())
	underscore := createTestNote(t, author.ID, "Rag_time "+tag, now())
	backslash := createTestNote(t, author.ID, `C:\Etudes `+tag, now())
	plain := createTestNote(t, author.ID, "Ragstime 1000 Blues "+tag, now())

	tests := []struct {
		query string
		want  []string
	}{
		{"0% b", []string{percent.ID}},
		{"g_t", []string{underscore.ID}},
		{`c:\e`, []string{backslash.ID}},
		{"ragstime", []string{plain.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			found, err := repo.List(ctx, NoteFilter{NameContains: tt.query})
			require.NoError(t, err)

			var mine []string
			for _, n := range found {
				if strings.HasSuffix(n.Name, tag) {
					mine = append(mine, n.ID)
				}
			}
			require.Equal(t, tt.want, mine)
		})
	}
}

func TestNoteRepository_SearchLimit(t *testing.T) {
	ctx := context.Background()
	repo := NewNoteRepository(testDB)
	author := createTestUser(t, "Clara Composer")
	tag := domain.NewObjectID()

	for i := 0; i < 3; i++ {
		createTestNote(t, author.ID, "Minuet "+tag, now())
	}

	found, err := repo.List(ctx, NoteFilter{NameContains: tag, Limit: 2})
	require.NoError(t, err)
	require.Len(t, found, 2)
}

func TestNoteRepository_SoftDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewNoteRepository(testDB)
	author := createTestUser(t, "Clara Composer")
	tag := domain.NewObjectID()
	note := createTestNote(t, author.ID, "Fur Elise "+tag, now())

	require.NoError(t, repo.SoftDelete(ctx, note.ID))
	require.ErrorIs(t, repo.SoftDelete(ctx, note.ID), ErrNoteNotFound)
	require.ErrorIs(t, repo.SoftDelete(ctx, domain.NewObjectID()), ErrNoteNotFound)

	_, err := repo.FindByID(ctx, note.ID)
	require.ErrorIs(t, err, ErrNoteNotFound)

	found, err := repo.List(ctx, NoteFilter{NameContains: tag})
	require.NoError(t, err)
	require.Empty(t, found)

	var flagged bool
	require.NoError(t, testDB.QueryRowContext(ctx, `SELECT delete_flag FROM notes WHERE id = $1`, note.ID).Scan(&flagged))
	require.True(t, flagged)
}

func TestNoteRepository_Comments(t *testing.T) {
	ctx := context.Background()
	repo := NewNoteRepository(testDB)
	author := createTestUser(t, "Clara Composer")
	reader := createTestUser(t, "Rita Reader")
	note := createTestNote(t, author.ID, "Arabesque", now())

	base := now()
	second := &domain.NoteComment{ID: domain.NewObjectID(), NoteID: note.ID, UserID: author.ID, Text: "Thanks", CreatedAt: base.Add(time.Second)}
	first := &domain.NoteComment{ID: domain.NewObjectID(), NoteID: note.ID, UserID: reader.ID, Text: "Lovely", CreatedAt: base}
	require.NoError(t, repo.AddComment(ctx, second))
	require.NoError(t, repo.AddComment(ctx, first))

	comments, err := repo.ListComments(ctx, note.ID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, first.ID, comments[0].ID)
	require.Equal(t, "Lovely", comments[0].Text)
	require.Equal(t, "Rita Reader", comments[0].AuthorName)
	require.Equal(t, second.ID, comments[1].ID)
	require.Equal(t, "Clara Composer", comments[1].AuthorName)

	empty, err := repo.ListComments(ctx, domain.NewObjectID())
	require.NoError(t, err)
	require.NotNil(t, empty)
	require.Empty(t, empty)
}

func TestNoteRepository_CommentOnDeletedNote(t *testing.T) {
	ctx := context.Background()
	repo := NewNoteRepository(testDB)
	author := createTestUser(t, "Clara Composer")
	note := createTestNote(t, author.ID, "Gone", now())
	require.NoError(t, repo.SoftDelete(ctx, note.ID))

	comment := &domain.NoteComment{ID: domain.NewObjectID(), NoteID: note.ID, UserID: author.ID, Text: "late", CreatedAt: now()}
	require.ErrorIs(t, repo.AddComment(ctx, comment), ErrNoteNotFound)

	comment.NoteID = domain.NewObjectID()
	require.ErrorIs(t, repo.AddComment(ctx, comment), ErrNoteNotFound)

	var n int
	require.NoError(t, testDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM note_comments WHERE id = $1`, comment.ID).Scan(&n))
	require.Zero(t, n)
}

func TestNoteRepository_Stats(t *testing.T) {
	ctx := context.Background()
	repo := NewNoteRepository(testDB)

	before, err := repo.Stats(ctx)
	require.NoError(t, err)

	author := createTestUser(t, "Clara Composer")
	kept := createTestNote(t, author.ID, "Kept", now())
	dropped := createTestNote(t, author.ID, "Dropped", now())
	for _, id := range []string{kept.ID, dropped.ID} {
		require.NoError(t, repo.AddComment(ctx, &domain.NoteComment{
			ID: domain.NewObjectID(), NoteID: id, UserID: author.ID, Text: "ok", CreatedAt: now(),
		}))
	}
	require.NoError(t, repo.SoftDelete(ctx, dropped.ID))

	after, err := repo.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, before.Notes+1, after.Notes)
	require.Equal(t, before.Users+1, after.Users)
	require.Equal(t, before.Comments+1, after.Comments)
}
