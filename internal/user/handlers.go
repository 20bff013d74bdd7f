package user

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/store"
)

// MaxAddresses caps the address book per account.
const MaxAddresses = 6

// Repo is the account surface the profile endpoints need.
type Repo interface {
	Get(ctx context.Context, id string) (store.User, error)
	UpdateProfile(ctx context.Context, id, name string) (store.User, error)
	ListAddresses(ctx context.Context, userID string) ([]store.Address, error)
	CountAddresses(ctx context.Context, userID string) (int, error)
	GetAddress(ctx context.Context, userID, id string) (store.Address, error)
	CreateAddress(ctx context.Context, a store.Address) (store.Address, error)
	UpdateAddress(ctx context.Context, a store.Address) (store.Address, error)
	DeleteAddress(ctx context.Context, userID, id string) error
}

// Handler serves the authenticated profile and address book endpoints.
type Handler struct {
	Repo     Repo
	Validate *validator.Validate
}

type profilePayload struct {
	Name string `json:"name" validate:"required,min=1,max=128"`
}

type addressPayload struct {
	Label        string `json:"label" validate:"max=64"`
	ReceiverName string `json:"receiverName" validate:"required,min=1,max=128"`
	Phone        string `json:"phone" validate:"required"`
	Line1        string `json:"line1" validate:"required,min=3,max=256"`
	Line2        string `json:"line2" validate:"max=256"`
	ZoneID       string `json:"zoneId"`
	IsDefault    bool   `json:"isDefault"`
}

// Me returns the authenticated account.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Repo.Get(r.Context(), common.UserID(r.Context()))
	if err != nil {
		h.writeRepoError(w, err, "account")
		return
	}
	common.JSON(w, http.StatusOK, user)
}

// UpdateMe updates the profile name.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var payload profilePayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	user, err := h.Repo.UpdateProfile(r.Context(), common.UserID(r.Context()), strings.TrimSpace(payload.Name))
	if err != nil {
		h.writeRepoError(w, err, "account")
		return
	}
	common.JSON(w, http.StatusOK, user)
}

// ListAddresses returns the caller's address book.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := h.Repo.ListAddresses(r.Context(), common.UserID(r.Context()))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load addresses", nil)
		return
	}
	if addresses == nil {
		addresses = []store.Address{}
	}
	common.JSON(w, http.StatusOK, addresses)
}

// CreateAddress adds an address, enforcing the per-account cap.
func (h *Handler) CreateAddress(w http.ResponseWriter, r *http.Request) {
	var payload addressPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	phone, ok := common.NormalizePhone(payload.Phone)
	if !ok {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid phone number", nil)
		return
	}
	userID := common.UserID(r.Context())
	count, err := h.Repo.CountAddresses(r.Context(), userID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to save address", nil)
		return
	}
	if count >= MaxAddresses {
		common.JSONError(w, http.StatusUnprocessableEntity, "ADDRESS_LIMIT", "address book is full", nil)
		return
	}
	address, err := h.Repo.CreateAddress(r.Context(), payload.toModel(userID, phone))
	if err != nil {
		h.writeRepoError(w, err, "address")
		return
	}
	common.JSON(w, http.StatusCreated, address)
}

// UpdateAddress mutates one saved address.
func (h *Handler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var payload addressPayload
	if !h.decodeAndValidate(w, r, &payload) {
		return
	}
	phone, ok := common.NormalizePhone(payload.Phone)
	if !ok {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid phone number", nil)
		return
	}
	model := payload.toModel(common.UserID(r.Context()), phone)
	model.ID = chi.URLParam(r, "id")
	address, err := h.Repo.UpdateAddress(r.Context(), model)
	if err != nil {
		h.writeRepoError(w, err, "address")
		return
	}
	common.JSON(w, http.StatusOK, address)
}

// DeleteAddress removes one saved address.
func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteAddress(r.Context(), common.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.writeRepoError(w, err, "address")
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (p addressPayload) toModel(userID, phone string) store.Address {
	return store.Address{
		UserID:       userID,
		Label:        strings.TrimSpace(p.Label),
		ReceiverName: strings.TrimSpace(p.ReceiverName),
		Phone:        phone,
		Line1:        strings.TrimSpace(p.Line1),
		Line2:        strings.TrimSpace(p.Line2),
		ZoneID:       strings.TrimSpace(p.ZoneID),
		IsDefault:    p.IsDefault,
	}
}

func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
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

func (h *Handler) writeRepoError(w http.ResponseWriter, err error, entity string) {
	if errors.Is(err, store.ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", entity+" not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to save "+entity, nil)
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
