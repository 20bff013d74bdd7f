package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/store"
)

// AdminHandler exposes catalog management endpoints for the admin console.
type AdminHandler struct {
	Repo     *store.CatalogRepo
	Svc      *Service
	Validate *validator.Validate
}

type categoryPayload struct {
	Slug      string `json:"slug" validate:"required,min=2,max=64"`
	Name      string `json:"name" validate:"required,min=1,max=128"`
	NameFa    string `json:"nameFa"`
	SortOrder int    `json:"sortOrder" validate:"gte=0"`
}

type addOnPayload struct {
	Name   string `json:"name" validate:"required,min=1,max=128"`
	NameFa string `json:"nameFa"`
	Price  int64  `json:"price" validate:"gte=0"`
	Active *bool  `json:"active"`
}

type itemPayload struct {
	Slug        string          `json:"slug" validate:"required,min=2,max=64"`
	Name        string          `json:"name" validate:"required,min=1,max=128"`
	NameFa      string          `json:"nameFa"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       int64           `json:"price" validate:"gte=0"`
	CategoryIDs []string        `json:"categoryIds"`
	Variants    []store.Variant `json:"variants" validate:"dive"`
	AddOnIDs    []string        `json:"addOnIds"`
	Available   *bool           `json:"available"`
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

func (h *AdminHandler) writeRepoError(w http.ResponseWriter, err error, entity string) {
	if errors.Is(err, store.ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", entity+" not found", nil)
		return
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		common.JSONError(w, http.StatusConflict, "CONFLICT", entity+" slug already exists", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to save "+entity, nil)
}

// ListCategories returns all categories including hidden metadata.
func (h *AdminHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.Repo.ListCategories(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load categories", nil)
		return
	}
	common.JSON(w, http.StatusOK, categories)
}

// CreateCategory inserts a category.
func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var payload categoryPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	category, err := h.Repo.CreateCategory(r.Context(), store.Category{
		Slug: payload.Slug, Name: payload.Name, NameFa: payload.NameFa, SortOrder: payload.SortOrder,
	})
	if err != nil {
		h.writeRepoError(w, err, "category")
		return
	}
	h.Svc.InvalidateCaches(r.Context())
	common.JSON(w, http.StatusCreated, category)
}

// UpdateCategory mutates a category.
func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	var payload categoryPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	category, err := h.Repo.UpdateCategory(r.Context(), store.Category{
		ID: chi.URLParam(r, "id"), Slug: payload.Slug, Name: payload.Name,
		NameFa: payload.NameFa, SortOrder: payload.SortOrder,
	})
	if err != nil {
		h.writeRepoError(w, err, "category")
		return
	}
	h.Svc.InvalidateCaches(r.Context())
	common.JSON(w, http.StatusOK, category)
}

// DeleteCategory removes a category.
func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeRepoError(w, err, "category")
		return
	}
	h.Svc.InvalidateCaches(r.Context())
	common.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// ListAddOns returns all add-ons including inactive ones.
func (h *AdminHandler) ListAddOns(w http.ResponseWriter, r *http.Request) {
	addOns, err := h.Repo.ListAddOns(r.Context(), false)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load add-ons", nil)
		return
	}
	common.JSON(w, http.StatusOK, addOns)
}

// CreateAddOn inserts an add-on.
func (h *AdminHandler) CreateAddOn(w http.ResponseWriter, r *http.Request) {
	var payload addOnPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	addOn, err := h.Repo.CreateAddOn(r.Context(), store.AddOn{
		Name: payload.Name, NameFa: payload.NameFa, Price: payload.Price, Active: active,
	})
	if err != nil {
		h.writeRepoError(w, err, "add-on")
		return
	}
	h.Svc.InvalidateCaches(r.Context())
	common.JSON(w, http.StatusCreated, addOn)
}

// UpdateAddOn mutates an add-on.
func (h *AdminHandler) UpdateAddOn(w http.ResponseWriter, r *http.Request) {
	var payload addOnPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	active := true
	if payload.Active != nil {
		active = *payload.Active
	}
	addOn, err := h.Repo.UpdateAddOn(r.Context(), store.AddOn{
		ID: chi.URLParam(r, "id"), Name: payload.Name, NameFa: payload.NameFa,
		Price: payload.Price, Active: active,
	})
	if err != nil {
		h.writeRepoError(w, err, "add-on")
		return
	}
	h.Svc.InvalidateCaches(r.Context())
	common.JSON(w, http.StatusOK, addOn)
}

// DeleteAddOn removes an add-on.
func (h *AdminHandler) DeleteAddOn(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteAddOn(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeRepoError(w, err, "add-on")
		return
	}
	h.Svc.InvalidateCaches(r.Context())
	common.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// ListItems returns menu items including unavailable ones.
func (h *AdminHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	items, total, err := h.Repo.ListItems(r.Context(), store.ItemFilter{
		CategoryID: strings.TrimSpace(r.URL.Query().Get("category")),
		Search:     strings.TrimSpace(r.URL.Query().Get("q")),
		Page:       page,
		PerPage:    perPage,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load items", nil)
		return
	}
	if items == nil {
		items = []store.MenuItem{}
	}
	common.JSONList(w, http.StatusOK, items, common.Pagination{Page: page, PerPage: perPage, TotalItems: total})
}

func (p itemPayload) toModel() store.MenuItem {
	available := true
	if p.Available != nil {
		available = *p.Available
	}
	return store.MenuItem{
		Slug: p.Slug, Name: p.Name, NameFa: p.NameFa, Description: p.Description,
		Image: p.Image, Price: p.Price, CategoryIDs: p.CategoryIDs,
		Variants: p.Variants, AddOnIDs: p.AddOnIDs, Available: available,
	}
}

// CreateItem inserts a menu item.
func (h *AdminHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	item, err := h.Repo.CreateItem(r.Context(), payload.toModel())
	if err != nil {
		h.writeRepoError(w, err, "item")
		return
	}
	common.JSON(w, http.StatusCreated, item)
}

// UpdateItem mutates a menu item.
func (h *AdminHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	model := payload.toModel()
	model.ID = chi.URLParam(r, "id")
	item, err := h.Repo.UpdateItem(r.Context(), model)
	if err != nil {
		h.writeRepoError(w, err, "item")
		return
	}
	common.JSON(w, http.StatusOK, item)
}

// DeleteItem removes a menu item.
func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeRepoError(w, err, "item")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"deleted": true})
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
