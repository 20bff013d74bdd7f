package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/pricing"
)

// SessionHeader carries the cart session identifier on every request.
const SessionHeader = "X-Cart-Session"

// Handler wires the session registry to HTTP.
type Handler struct {
	Registry *Registry
	TaxBps   int
}

// Routes mounts the cart endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/session", h.CreateSession)
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Patch("/items/{itemId}", h.UpdateQty)
	r.Delete("/items/{itemId}", h.RemoveItem)
	r.Put("/items/{itemId}/note", h.SetItemNote)
	r.Put("/note", h.SetOrderNote)
	r.Post("/coupon", h.ApplyCoupon)
	return r
}

// CreateSession issues a fresh cart session identifier.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	h.Registry.Get(id)
	common.JSON(w, http.StatusCreated, map[string]any{"sessionId": id})
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) (*Store, bool) {
	session := strings.TrimSpace(r.Header.Get(SessionHeader))
	if session == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "missing "+SessionHeader+" header", nil)
		return nil, false
	}
	return h.Registry.Get(session), true
}

func (h *Handler) render(w http.ResponseWriter, status int, store *Store) {
	state := store.Snapshot()
	items := make([]pricing.Item, 0, len(state.Items))
	for _, line := range state.Items {
		items = append(items, pricing.Item{Qty: line.Qty, UnitPrice: line.Price})
	}
	summary := pricing.Compute(items, state.Discount, h.TaxBps, 0)
	common.JSON(w, status, map[string]any{
		"items":      state.Items,
		"note":       state.Note,
		"couponCode": state.CouponCode,
		"discount":   state.Discount,
		"pricing": map[string]any{
			"subtotal": summary.Subtotal,
			"discount": summary.Discount,
			"tax":      summary.Tax,
			"shipping": summary.Shipping,
			"total":    summary.Total,
		},
	})
}

// Get returns the cart contents and a pricing preview.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	h.render(w, http.StatusOK, store)
}

// AddItem appends a line to the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var item Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := store.AddItem(item); err != nil {
		if errors.Is(err, ErrInvalidInput) {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "item requires an id, qty >= 1 and non-negative prices", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to add item", nil)
		return
	}
	h.render(w, http.StatusCreated, store)
}

// UpdateQty sets the quantity of a line verbatim.
func (h *Handler) UpdateQty(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var payload struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	store.UpdateQty(chi.URLParam(r, "itemId"), payload.Qty)
	h.render(w, http.StatusOK, store)
}

// RemoveItem deletes a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	store.RemoveItem(chi.URLParam(r, "itemId"))
	h.render(w, http.StatusOK, store)
}

// SetItemNote sets or clears a per-line note.
func (h *Handler) SetItemNote(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var payload struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	store.SetItemNote(chi.URLParam(r, "itemId"), payload.Note)
	h.render(w, http.StatusOK, store)
}

// SetOrderNote sets or clears the order-level note.
func (h *Handler) SetOrderNote(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var payload struct {
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	store.SetOrderNote(payload.Note)
	h.render(w, http.StatusOK, store)
}

// ApplyCoupon stores a validated coupon code and discount atomically.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	var payload struct {
		CouponCode string `json:"couponCode"`
		Discount   int64  `json:"discount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := store.ApplyCoupon(payload.CouponCode, payload.Discount); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "discount must be non-negative", nil)
		return
	}
	h.render(w, http.StatusOK, store)
}

// Clear resets the cart to its empty state.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	store.Clear()
	h.render(w, http.StatusOK, store)
}
