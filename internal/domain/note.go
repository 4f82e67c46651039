package domain

import "time"

// NoteLevel is the difficulty of a piece of sheet music
type NoteLevel int

const (
	LevelBeginner NoteLevel = iota + 1
	LevelIntermediate
	LevelAdvanced
)

// MaxRate is the top of the star rating scale
const MaxRate = 5

func (l NoteLevel) Valid() bool {
	return l >= LevelBeginner && l <= LevelAdvanced
}

func (l NoteLevel) String() string {
	switch l {
	case LevelBeginner:
		return "beginner"
	case LevelIntermediate:
		return "intermediate"
	case LevelAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// Note is a sheet music entry in the catalog. Deleted notes keep their row
// with DeleteFlag set.
type Note struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Genres      []string  `json:"genres" db:"genres"`
	Composer    string    `json:"composer" db:"composer"`
	Description string    `json:"description" db:"description"`
	Level       NoteLevel `json:"level" db:"level"`
	Rate        float64   `json:"rate" db:"rate"`
	CreatedBy   string    `json:"created_by" db:"created_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	DeleteFlag  bool      `json:"-" db:"delete_flag"`
}

// CanDelete reports whether a caller with userID and role may remove the note
func (n *Note) CanDelete(userID, role string) bool {
	return role == RoleAdmin || (userID != "" && n.CreatedBy == userID)
}

// NoteComment is a remark left on a note
type NoteComment struct {
	ID        string    `json:"id" db:"id"`
	NoteID    string    `json:"note_id" db:"note_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Text      string    `json:"text" db:"body"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NoteCommentWithAuthor is a comment joined with its author's display name
type NoteCommentWithAuthor struct {
	NoteComment
	AuthorName string `json:"author_name"`
}

// SiteStats are the catalog totals shown on the landing page
type SiteStats struct {
	Notes    int64 `json:"notes_count"`
	Users    int64 `json:"users_count"`
	Comments int64 `json:"comments_count"`
}
