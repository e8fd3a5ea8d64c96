package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/store"
)

// SearchRequestHandler accepts new search requests and reports on stored ones.
type SearchRequestHandler struct {
	requests store.RequestStore
}

// NewSearchRequestHandler creates a new search request handler.
func NewSearchRequestHandler(requests store.RequestStore) *SearchRequestHandler {
	return &SearchRequestHandler{requests: requests}
}

type createSearchRequest struct {
	ID       string          `json:"id"`
	UserID   string          `json:"user_id"`
	Location json.RawMessage `json:"location"`
	DateTime time.Time       `json:"date_time"`
}

// Create handles POST /search-requests. Matching happens asynchronously once
// the search_request.created event reaches the worker.
func (h *SearchRequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createSearchRequest
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	req := &domain.SearchRequest{
		ID:        body.ID,
		UserID:    body.UserID,
		Location:  domain.ParsePoint(body.Location),
		DateTime:  body.DateTime.UTC(),
		Available: true,
	}
	if err := domain.ValidateSearchRequest(req); err != nil {
		RespondError(w, err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	if err := h.requests.CreateSearchRequest(r.Context(), req); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, req)
}

// Get handles GET /search-requests/{requestID}.
func (h *SearchRequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "requestID")
	req, err := h.requests.GetSearchRequest(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	if req == nil {
		RespondError(w, domain.ErrNotFound("search request", id))
		return
	}
	RespondJSON(w, http.StatusOK, req)
}
