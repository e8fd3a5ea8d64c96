package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/padelbud/platform/internal/domain"
	"github.com/padelbud/platform/internal/store"
)

// SlotProvisioner generates slots for one court.
type SlotProvisioner interface {
	ProvisionCourt(ctx context.Context, courtID string, days int) (int, error)
}

// CourtHandler serves slot listing and on-demand provisioning.
type CourtHandler struct {
	courts      store.CourtStore
	slots       store.SlotStore
	provisioner SlotProvisioner
	horizonDays int
}

// NewCourtHandler creates a new court handler. horizonDays is used when a
// provisioning call does not name its own horizon.
func NewCourtHandler(courts store.CourtStore, slots store.SlotStore, provisioner SlotProvisioner, horizonDays int) *CourtHandler {
	return &CourtHandler{courts: courts, slots: slots, provisioner: provisioner, horizonDays: horizonDays}
}

func (h *CourtHandler) lookup(w http.ResponseWriter, r *http.Request) (*domain.Court, bool) {
	id := chi.URLParam(r, "courtID")
	court, err := h.courts.GetCourt(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return nil, false
	}
	if court == nil {
		RespondError(w, domain.ErrNotFound("court", id))
		return nil, false
	}
	return court, true
}

// Slots handles GET /courts/{courtID}/slots.
func (h *CourtHandler) Slots(w http.ResponseWriter, r *http.Request) {
	court, ok := h.lookup(w, r)
	if !ok {
		return
	}
	slots, err := h.slots.AvailableSlots(r.Context(), court.ID)
	if err != nil {
		RespondError(w, err)
		return
	}
	if slots == nil {
		slots = []domain.TimeSlot{}
	}
	RespondJSON(w, http.StatusOK, slots)
}

// Provision handles POST /courts/{courtID}/provision?days=N.
func (h *CourtHandler) Provision(w http.ResponseWriter, r *http.Request) {
	days := h.horizonDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(w, domain.ErrValidation("days must be an integer"))
			return
		}
		days = n
	}
	if err := domain.ValidateHorizon(days); err != nil {
		RespondError(w, err)
		return
	}
	court, ok := h.lookup(w, r)
	if !ok {
		return
	}

	created, err := h.provisioner.ProvisionCourt(r.Context(), court.ID, days)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]interface{}{
		"court_id": court.ID,
		"days":     days,
		"created":  created,
	})
}
