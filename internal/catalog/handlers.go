package catalog

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/store"
)

// Handler exposes the public menu endpoints.
type Handler struct {
	Svc *Service
}

// Categories returns all menu categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Svc.Categories(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load categories", nil)
		return
	}
	common.JSON(w, http.StatusOK, categories)
}

// Items returns available menu items with pagination.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	filter := store.ItemFilter{
		CategoryID: strings.TrimSpace(r.URL.Query().Get("category")),
		Search:     strings.TrimSpace(r.URL.Query().Get("q")),
		Page:       page,
		PerPage:    perPage,
	}
	items, total, err := h.Svc.Items(r.Context(), filter)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load items", nil)
		return
	}
	if items == nil {
		items = []store.MenuItem{}
	}
	common.JSONList(w, http.StatusOK, items, common.Pagination{Page: page, PerPage: perPage, TotalItems: total})
}

// Item returns one menu item by slug with resolved add-ons.
func (h *Handler) Item(w http.ResponseWriter, r *http.Request) {
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	detail, err := h.Svc.ItemBySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "item not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load item", nil)
		return
	}
	common.JSON(w, http.StatusOK, detail)
}

// AddOns returns active add-ons.
func (h *Handler) AddOns(w http.ResponseWriter, r *http.Request) {
	addOns, err := h.Svc.AddOns(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load add-ons", nil)
		return
	}
	common.JSON(w, http.StatusOK, addOns)
}
