package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pianote/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

var ErrNoteNotFound = errors.New("note not found")

// NoteFilter narrows List. Deleted notes are never returned.
type NoteFilter struct {
	// NameContains matches names case-insensitively
	NameContains string
	Limit        uint64
}

// NoteRepository defines the interface for sheet music data access
type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	FindByID(ctx context.Context, id string) (*domain.Note, error)
	List(ctx context.Context, filter NoteFilter) ([]*domain.Note, error)
	SoftDelete(ctx context.Context, id string) error
	// AddComment fails with ErrNoteNotFound when the note is missing or deleted
	AddComment(ctx context.Context, comment *domain.NoteComment) error
	ListComments(ctx context.Context, noteID string) ([]*domain.NoteCommentWithAuthor, error)
	Stats(ctx context.Context) (*domain.SiteStats, error)
}

type noteRepository struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewNoteRepository creates a new instance of NoteRepository
func NewNoteRepository(db *sql.DB) NoteRepository {
	return &noteRepository{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

const noteColumns = `id, name, genres, composer, description, level, rate, created_by, created_at, delete_flag`

func scanNote(row rowScanner) (*domain.Note, error) {
	note := &domain.Note{}
	var genres []byte

	err := row.Scan(
		&note.ID,
		&note.Name,
		&genres,
		&note.Composer,
		&note.Description,
		&note.Level,
		&note.Rate,
		&note.CreatedBy,
		&note.CreatedAt,
		&note.DeleteFlag,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(genres, &note.Genres); err != nil {
		return nil, fmt.Errorf("failed to decode genres: %w", err)
	}
	return note, nil
}

// Create inserts a new note using parameterized queries
func (r *noteRepository) Create(ctx context.Context, note *domain.Note) error {
	genres := note.Genres
	if genres == nil {
		genres = []string{}
	}
	encoded, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}

	query := `
		INSERT INTO notes (id, name, genres, composer, description, level, rate, created_by, created_at, delete_flag)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = conn(ctx, r.db).ExecContext(
		ctx,
		query,
		note.ID,
		note.Name,
		string(encoded),
		note.Composer,
		note.Description,
		int(note.Level),
		note.Rate,
		note.CreatedBy,
		note.CreatedAt,
		note.DeleteFlag,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

// FindByID retrieves a note that has not been deleted
func (r *noteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id = $1 AND delete_flag = FALSE`

	note, err := scanNote(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to find note by ID: %w", err)
	}

	return note, nil
}

// List retrieves notes newest first
func (r *noteRepository) List(ctx context.Context, filter NoteFilter) ([]*domain.Note, error) {
	q := r.builder.
		Select(noteColumns).
		From("notes").
		Where(sq.Eq{"delete_flag": false}).
		OrderBy("created_at DESC", "id ASC")

	if filter.NameContains != "" {
		q = q.Where(sq.ILike{"name": "%" + escapeLike(filter.NameContains) + "%"})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build note list query: %w", err)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	notes := []*domain.Note{}
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}

	return notes, nil
}

// SoftDelete flags the note deleted; its row and comments stay
func (r *noteRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE notes SET delete_flag = TRUE WHERE id = $1 AND delete_flag = FALSE`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNoteNotFound
	}

	return nil
}

// AddComment inserts the comment only while its note is live, in one statement
func (r *noteRepository) AddComment(ctx context.Context, comment *domain.NoteComment) error {
	query := `
		INSERT INTO note_comments (id, note_id, user_id, body, created_at)
		SELECT $1, n.id, $3, $4, $5
		FROM notes n
		WHERE n.id = $2 AND n.delete_flag = FALSE
	`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		comment.ID, comment.NoteID, comment.UserID, comment.Text, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNoteNotFound
	}

	return nil
}

// ListComments returns the comments of a note oldest first
func (r *noteRepository) ListComments(ctx context.Context, noteID string) ([]*domain.NoteCommentWithAuthor, error) {
	query := `
		SELECT c.id, c.note_id, c.user_id, c.body, c.created_at, u.full_name
		FROM note_comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.note_id = $1
		ORDER BY c.created_at ASC, c.id ASC
	`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*domain.NoteCommentWithAuthor{}
	for rows.Next() {
		c := &domain.NoteCommentWithAuthor{}
		if err := rows.Scan(&c.ID, &c.NoteID, &c.UserID, &c.Text, &c.CreatedAt, &c.AuthorName); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}

	return comments, nil
}

// Stats counts live notes, users and the comments on live notes
func (r *noteRepository) Stats(ctx context.Context) (*domain.SiteStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM notes WHERE delete_flag = FALSE),
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM note_comments c JOIN notes n ON n.id = c.note_id WHERE n.delete_flag = FALSE)
	`

	stats := &domain.SiteStats{}
	if err := conn(ctx, r.db).QueryRowContext(ctx, query).Scan(&stats.Notes, &stats.Users, &stats.Comments); err != nil {
		return nil, fmt.Errorf("failed to count catalog: %w", err)
	}

	return stats, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes every character of s match literally inside a LIKE pattern
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
