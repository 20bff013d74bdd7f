package delivery

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/store"
)

// AdminHandler manages zones and slot capacity from the admin console.
type AdminHandler struct {
	Repo     *store.ZoneRepo
	Validate *validator.Validate
}

type zonePayload struct {
	Name        string `json:"name" validate:"required,min=1,max=128"`
	Description string `json:"description" validate:"max=512"`
	ShippingFee int64  `json:"shippingFee" validate:"gte=0"`
	MinOrder    int64  `json:"minOrder" validate:"gte=0"`
	SortOrder   int    `json:"sortOrder" validate:"gte=0"`
	Active      *bool  `json:"active"`
}

type slotPayload struct {
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Window   string `json:"window" validate:"required"`
	Capacity int    `json:"capacity" validate:"gte=0"`
}

func (h *AdminHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if err := h.Validate.Struct(dst); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid payload", validationDetails(err))
		return false
	}
	return true
}

func (h *AdminHandler) writeRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "zone not found", nil)
		return
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		common.JSONError(w, http.StatusConflict, "CONFLICT", "zone already exists", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to save zone", nil)
}

// ListZones returns every zone including inactive ones.
func (h *AdminHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := h.Repo.List(r.Context(), false)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load zones", nil)
		return
	}
	if zones == nil {
		zones = []store.Zone{}
	}
	common.JSON(w, http.StatusOK, zones)
}

// CreateZone inserts a service area.
func (h *AdminHandler) CreateZone(w http.ResponseWriter, r *http.Request) {
	var payload zonePayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	zone, err := h.Repo.Create(r.Context(), payload.toModel())
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, zone)
}

// UpdateZone mutates a service area.
func (h *AdminHandler) UpdateZone(w http.ResponseWriter, r *http.Request) {
	var payload zonePayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	model := payload.toModel()
	model.ID = chi.URLParam(r, "id")
	zone, err := h.Repo.Update(r.Context(), model)
	if err != nil {
		h.writeRepoError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, zone)
}

// DeleteZone removes a service area.
func (h *AdminHandler) DeleteZone(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeRepoError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// ListSlots returns the capacity board for one zone and date.
func (h *AdminHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	zoneID := chi.URLParam(r, "id")
	date := r.URL.Query().Get("date")
	if _, err := h.Repo.Get(r.Context(), zoneID); err != nil {
		h.writeRepoError(w, err)
		return
	}
	slots, err := h.Repo.ListSlots(r.Context(), zoneID, date)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load slots", nil)
		return
	}
	if slots == nil {
		slots = []store.Slot{}
	}
	common.JSON(w, http.StatusOK, slots)
}

// UpsertSlot sets the capacity for one delivery window. The slots table
// rejects capacity below the current reservation count.
func (h *AdminHandler) UpsertSlot(w http.ResponseWriter, r *http.Request) {
	var payload slotPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	if !windowPattern.MatchString(payload.Window) {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "window must be HH:MM-HH:MM", nil)
		return
	}
	zoneID := chi.URLParam(r, "id")
	if _, err := h.Repo.Get(r.Context(), zoneID); err != nil {
		h.writeRepoError(w, err)
		return
	}
	slot, err := h.Repo.UpsertSlot(r.Context(), store.Slot{
		ZoneID:   zoneID,
		Date:     payload.Date,
		Window:   payload.Window,
		Capacity: payload.Capacity,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "capacity below current reservations", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to save slot", nil)
		return
	}
	common.JSON(w, http.StatusOK, slot)
}

func (p zonePayload) toModel() store.Zone {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return store.Zone{
		Name:        p.Name,
		Description: p.Description,
		DeliveryFee: p.ShippingFee,
		MinOrder:    p.MinOrder,
		SortOrder:   p.SortOrder,
		Active:      active,
	}
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return fields
}
