package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/store"
)

// MatchHandler exposes committed matches and player status.
type MatchHandler struct {
	matches store.MatchStore
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(matches store.MatchStore) *MatchHandler {
	return &MatchHandler{matches: matches}
}

// GetMatch handles GET /matches/{matchID}.
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "matchID")
	m, err := h.matches.GetMatch(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	if m == nil {
		RespondError(w, domain.ErrNotFound("match", id))
		return
	}
	RespondJSON(w, http.StatusOK, m)
}

type playerResponse struct {
	*domain.Player
	State string `json:"state"`
}

// GetPlayer handles GET /players/{playerID}.
func (h *MatchHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "playerID")
	p, err := h.matches.GetPlayer(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	if p == nil {
		RespondError(w, domain.ErrNotFound("player", id))
		return
	}
	RespondJSON(w, http.StatusOK, playerResponse{Player: p, State: p.BuddiesState.String()})
}
