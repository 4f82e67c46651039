package transport

import (
	"errors"
	"net/http"

	"pianote/internal/domain"
	"pianote/internal/middleware"
	"pianote/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateNoteRequest represents the note creation payload
type CreateNoteRequest struct {
	Name        string   `json:"name" validate:"required,max=150"`
	Genres      []string `json:"genres" validate:"required,min=1,max=10,dive,required,max=50"`
	Composer    string   `json:"composer" validate:"required,max=150"`
	Description string   `json:"description" validate:"max=5000"`
	Level       int      `json:"level" validate:"required,gte=1,lte=3"`
	Rate        float64  `json:"rate" validate:"gte=0,lte=5"`
}

// AddCommentRequest represents the comment payload
type AddCommentRequest struct {
	Text string `json:"text" validate:"required,max=1000"`
}

// SearchQuery holds the search query string parameters
type SearchQuery struct {
	Q string `json:"q" validate:"max=150"`
}

// SearchResult is one match in a search response
type SearchResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchResponse wraps the name matches of a search
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

// NoteHandler handles HTTP requests for the sheet music catalog
type NoteHandler struct {
	noteService service.NoteService
	logger      *zap.Logger
}

// NewNoteHandler creates a new NoteHandler
func NewNoteHandler(noteService service.NoteService, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{
		noteService: noteService,
		logger:      logger,
	}
}

// RegisterRoutes registers the catalog and stats routes
func (h *NoteHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/api/stats", h.Stats)

	r.Route("/api/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Get("/search", h.SearchNotes)
		r.Get("/{id}", h.GetNote)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.CreateNote)
			r.Delete("/{id}", h.DeleteNote)
			r.Post("/{id}/comments", h.AddComment)
		})
	})
}

// ListNotes handles the catalog listing
func (h *NoteHandler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.noteService.List(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, notes)
}

// SearchNotes handles the name search used by the search box
func (h *NoteHandler) SearchNotes(w http.ResponseWriter, r *http.Request) {
	query := SearchQuery{Q: r.URL.Query().Get("q")}
	if err := middleware.ValidateRequest(&query); err != nil {
		middleware.RespondWithDecodeError(w, err)
		return
	}

	notes, err := h.noteService.Search(r.Context(), query.Q)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	resp := SearchResponse{Results: make([]SearchResult, 0, len(notes))}
	for _, n := range notes {
		resp.Results = append(resp.Results, SearchResult{ID: n.ID, Name: n.Name})
	}

	middleware.RespondWithJSON(w, http.StatusOK, resp)
}

// GetNote handles the note detail view
func (h *NoteHandler) GetNote(w http.ResponseWriter, r *http.Request) {
	noteID, ok := objectIDParam(w, r, service.ErrNoteNotFound)
	if !ok {
		return
	}

	detail, err := h.noteService.Get(r.Context(), noteID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, detail)
}

// CreateNote handles adding a note to the catalog
func (h *NoteHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateNoteRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Note validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	note, err := h.noteService.Create(r.Context(), creatorID, service.CreateNoteInput{
		Name:        req.Name,
		Genres:      req.Genres,
		Composer:    req.Composer,
		Description: req.Description,
		Level:       domain.NoteLevel(req.Level),
		Rate:        req.Rate,
	})
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, note)
}

// DeleteNote handles removing a note. Admins may remove any note.
func (h *NoteHandler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	role, _ := middleware.GetUserRole(r.Context())

	noteID, ok := objectIDParam(w, r, service.ErrNoteNotFound)
	if !ok {
		return
	}

	if err := h.noteService.Delete(r.Context(), noteID, actorID, role); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddComment handles a comment on a note
func (h *NoteHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	noteID, ok := objectIDParam(w, r, service.ErrNoteNotFound)
	if !ok {
		return
	}

	var req AddCommentRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Comment validation failed", zap.Error(err))
		middleware.RespondWithDecodeError(w, err)
		return
	}

	comment, err := h.noteService.AddComment(r.Context(), noteID, userID, req.Text)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, comment)
}

// Stats handles the landing page totals
func (h *NoteHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.noteService.Stats(r.Context())
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, stats)
}

// respondWithServiceError maps service errors to HTTP statuses
func (h *NoteHandler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNoteNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNoteForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrUnknownUser):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidNote), errors.Is(err, service.ErrInvalidComment):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Note request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		middleware.RespondWithError(w, status, "internal server error")
		return
	}

	middleware.RespondWithError(w, status, err.Error())
}
