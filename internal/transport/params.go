package transport

import (
	"net/http"

	"pianote/internal/domain"
	"pianote/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// objectIDParam reads the {id} route parameter. Anything that cannot be an
// identifier is answered with 404 and never reaches the store.
func objectIDParam(w http.ResponseWriter, r *http.Request, notFound error) (string, bool) {
	id := chi.URLParam(r, "id")
	if !domain.IsObjectID(id) {
		middleware.RespondWithError(w, http.StatusNotFound, notFound.Error())
		return "", false
	}
	return id, true
}
