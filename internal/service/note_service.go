package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"pianote/internal/domain"
	"pianote/internal/repository"

	"go.uber.org/zap"
)

const (
	MaxNoteFieldLength = 150
	MaxNoteGenres      = 10
	MaxCommentLength   = 1000
	SearchLimit        = 20
)

// CreateNoteInput carries the fields of a new sheet music entry
type CreateNoteInput struct {
	Name        string
	Genres      []string
	Composer    string
	Description string
	Level       domain.NoteLevel
	Rate        float64
}

// NoteDetail is a note with its comments, oldest first
type NoteDetail struct {
	Note       *domain.Note                    `json:"note"`
	LevelLabel string                          `json:"level_label"`
	Comments   []*domain.NoteCommentWithAuthor `json:"comments"`
}

// NoteService defines the interface for the sheet music catalog
type NoteService interface {
	List(ctx context.Context) ([]*domain.Note, error)
	// Search matches note names case-insensitively. A blank query finds nothing.
	Search(ctx context.Context, query string) ([]*domain.Note, error)
	Get(ctx context.Context, noteID string) (*NoteDetail, error)
	Create(ctx context.Context, creatorID string, in CreateNoteInput) (*domain.Note, error)
	Delete(ctx context.Context, noteID, actorID, role string) error
	AddComment(ctx context.Context, noteID, userID, text string) (*domain.NoteCommentWithAuthor, error)
	Stats(ctx context.Context) (*domain.SiteStats, error)
}

type noteService struct {
	noteRepo repository.NoteRepository
	userRepo repository.UserRepository
	logger   *zap.Logger
	clock    func() time.Time
}

// NewNoteService creates a new instance of NoteService
func NewNoteService(noteRepo repository.NoteRepository, userRepo repository.UserRepository, logger *zap.Logger) NoteService {
	return &noteService{
		noteRepo: noteRepo,
		userRepo: userRepo,
		logger:   logger,
		clock:    time.Now,
	}
}

func (s *noteService) List(ctx context.Context) ([]*domain.Note, error) {
	notes, err := s.noteRepo.List(ctx, repository.NoteFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	return notes, nil
}

func (s *noteService) Search(ctx context.Context, query string) ([]*domain.Note, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.Note{}, nil
	}

	notes, err := s.noteRepo.List(ctx, repository.NoteFilter{NameContains: query, Limit: SearchLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to search notes: %w", err)
	}
	return notes, nil
}

func (s *noteService) Get(ctx context.Context, noteID string) (*NoteDetail, error) {
	note, err := s.noteRepo.FindByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to load note: %w", err)
	}

	comments, err := s.noteRepo.ListComments(ctx, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to load comments: %w", err)
	}

	return &NoteDetail{Note: note, LevelLabel: note.Level.String(), Comments: comments}, nil
}

// Create validates and stores a new note owned by creatorID
func (s *noteService) Create(ctx context.Context, creatorID string, in CreateNoteInput) (*domain.Note, error) {
	name := strings.TrimSpace(in.Name)
	composer := strings.TrimSpace(in.Composer)
	genres := cleanGenres(in.Genres)

	switch {
	case name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidNote)
	case utf8.RuneCountInString(name) > MaxNoteFieldLength:
		return nil, fmt.Errorf("%w: name must be at most %d characters", ErrInvalidNote, MaxNoteFieldLength)
	case composer == "":
		return nil, fmt.Errorf("%w: composer is required", ErrInvalidNote)
	case utf8.RuneCountInString(composer) > MaxNoteFieldLength:
		return nil, fmt.Errorf("%w: composer must be at most %d characters", ErrInvalidNote, MaxNoteFieldLength)
	case !in.Level.Valid():
		return nil, fmt.Errorf("%w: level must be between %d and %d", ErrInvalidNote, domain.LevelBeginner, domain.LevelAdvanced)
	case math.IsNaN(in.Rate) || in.Rate < 0 || in.Rate > domain.MaxRate:
		return nil, fmt.Errorf("%w: rate must be between 0 and %d", ErrInvalidNote, domain.MaxRate)
	case len(genres) == 0:
		return nil, fmt.Errorf("%w: at least one genre is required", ErrInvalidNote)
	case len(genres) > MaxNoteGenres:
		return nil, fmt.Errorf("%w: at most %d genres are allowed", ErrInvalidNote, MaxNoteGenres)
	}

	note := &domain.Note{
		ID:          domain.NewObjectID(),
		Name:        name,
		Genres:      genres,
		Composer:    composer,
		Description: in.Description,
		Level:       in.Level,
		Rate:        in.Rate,
		CreatedBy:   creatorID,
		CreatedAt:   s.clock(),
	}

	if err := s.noteRepo.Create(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	s.logger.Info("Note created",
		zap.String("note_id", note.ID),
		zap.String("created_by", creatorID),
	)
	return note, nil
}

// Delete soft-deletes the note when the actor wrote it or is an admin
func (s *noteService) Delete(ctx context.Context, noteID, actorID, role string) error {
	note, err := s.noteRepo.FindByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return ErrNoteNotFound
		}
		return fmt.Errorf("failed to load note: %w", err)
	}

	if !note.CanDelete(actorID, role) {
		return ErrNoteForbidden
	}

	if err := s.noteRepo.SoftDelete(ctx, noteID); err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return ErrNoteNotFound
		}
		return fmt.Errorf("failed to delete note: %w", err)
	}

	s.logger.Info("Note deleted",
		zap.String("note_id", noteID),
		zap.String("actor_id", actorID),
		zap.String("role", role),
	)
	return nil
}

func (s *noteService) AddComment(ctx context.Context, noteID, userID, text string) (*domain.NoteCommentWithAuthor, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "":
		return nil, fmt.Errorf("%w: text is required", ErrInvalidComment)
	case utf8.RuneCountInString(text) > MaxCommentLength:
		return nil, fmt.Errorf("%w: text must be at most %d characters", ErrInvalidComment, MaxCommentLength)
	}

	author, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("failed to load author: %w", err)
	}

	comment := domain.NoteComment{
		ID:        domain.NewObjectID(),
		NoteID:    noteID,
		UserID:    userID,
		Text:      text,
		CreatedAt: s.clock(),
	}

	if err := s.noteRepo.AddComment(ctx, &comment); err != nil {
		if errors.Is(err, repository.ErrNoteNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	return &domain.NoteCommentWithAuthor{NoteComment: comment, AuthorName: author.FullName}, nil
}

func (s *noteService) Stats(ctx context.Context) (*domain.SiteStats, error) {
	stats, err := s.noteRepo.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

// cleanGenres trims genres and drops blanks and case-insensitive repeats
func cleanGenres(genres []string) []string {
	out := make([]string, 0, len(genres))
	seen := make(map[string]struct{}, len(genres))
	for _, g := range genres {
		g = strings.TrimSpace(g)
		key := strings.ToLower(g)
		if g == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, g)
	}
	return out
}
