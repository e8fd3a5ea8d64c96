package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/store"
)

// NearbyFinder returns the ids of the clubs closest to a point.
type NearbyFinder interface {
	NearbyClubs(ctx context.Context, point *domain.Point) ([]string, error)
}

// ClubHandler serves club and court creation plus nearby-club lookups.
type ClubHandler struct {
	clubs  store.ClubStore
	courts store.CourtStore
	finder NearbyFinder
}

// NewClubHandler creates a new club handler.
func NewClubHandler(clubs store.ClubStore, courts store.CourtStore, finder NearbyFinder) *ClubHandler {
	return &ClubHandler{clubs: clubs, courts: courts, finder: finder}
}

type createClubRequest struct {
	ID       string                `json:"id"`
	Name     string                `json:"name"`
	Location json.RawMessage       `json:"location"`
	Schedule domain.WeeklySchedule `json:"schedule"`
}

// Create handles POST /clubs.
func (h *ClubHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createClubRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		RespondError(w, domain.ErrValidation("name is required"))
		return
	}
	club := &domain.Club{
		ID:       req.ID,
		Name:     req.Name,
		Location: domain.ParsePoint(req.Location),
		Schedule: req.Schedule,
	}
	if club.Location == nil && len(req.Location) > 0 && string(req.Location) != "null" {
		RespondError(w, domain.ErrValidation("location must carry a valid latitude and longitude"))
		return
	}
	if err := domain.ValidateSchedule(club.Schedule); err != nil {
		RespondError(w, err)
		return
	}
	if club.ID == "" {
		club.ID = uuid.NewString()
	}

	if err := h.clubs.CreateClub(r.Context(), club); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, club)
}

// Get handles GET /clubs/{clubID}.
func (h *ClubHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "clubID")
	club, err := h.clubs.GetClub(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	if club == nil {
		RespondError(w, domain.ErrNotFound("club", id))
		return
	}
	RespondJSON(w, http.StatusOK, club)
}

// Nearby handles GET /clubs/nearby?lat=&lng=.
func (h *ClubHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	point := domain.NewPoint(lat, lng)
	if errLat != nil || errLng != nil || point == nil {
		RespondError(w, domain.ErrValidation("lat and lng must be valid coordinates"))
		return
	}

	ids, err := h.finder.NearbyClubs(r.Context(), point)
	if err != nil {
		RespondError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{"club_ids": ids})
}

type createCourtRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	GameDuration int    `json:"game_duration"`
}

// CreateCourt handles POST /clubs/{clubID}/courts.
func (h *ClubHandler) CreateCourt(w http.ResponseWriter, r *http.Request) {
	var req createCourtRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	court := &domain.Court{
		ID:           req.ID,
		ClubID:       chi.URLParam(r, "clubID"),
		Name:         req.Name,
		GameDuration: req.GameDuration,
	}
	if err := domain.ValidateCourt(court); err != nil {
		RespondError(w, err)
		return
	}
	if court.ID == "" {
		court.ID = uuid.NewString()
	}

	if err := h.courts.CreateCourt(r.Context(), court); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, court)
}
