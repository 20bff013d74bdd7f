package order

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sofreh/backend-resto/internal/cart"
	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/store"
)

// Handler serves the customer-facing order endpoints.
type Handler struct {
	Svc   *Service
	Carts *cart.Registry
}

type checkoutPayload struct {
	Channel  string           `json:"channel"`
	Items    []CheckoutItem   `json:"items"`
	Delivery CheckoutDelivery `json:"delivery"`
	Coupon   string           `json:"couponCode"`
	Note     string           `json:"note"`
	Payment  struct {
		Method string `json:"method"`
	} `json:"payment"`
}

// checkoutResponse duplicates the id as orderId, which is the key the
// storefront reads to route to the order detail page.
type checkoutResponse struct {
	store.Order
	OrderID string `json:"orderId"`
}

// Checkout handles POST /orders.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	placed, err := h.Svc.Checkout(r.Context(), CheckoutInput{
		UserID:        common.UserID(r.Context()),
		Channel:       payload.Channel,
		Items:         payload.Items,
		Delivery:      payload.Delivery,
		CouponCode:    payload.Coupon,
		Note:          payload.Note,
		PaymentMethod: payload.Payment.Method,
	})
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	if h.Carts != nil {
		if session := strings.TrimSpace(r.Header.Get(cart.SessionHeader)); session != "" {
			h.Carts.Drop(session)
		}
	}
	common.JSON(w, http.StatusCreated, checkoutResponse{Order: placed, OrderID: placed.ID})
}

// Cancel handles POST /orders/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	placed, err := h.Svc.Cancel(r.Context(), common.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, placed)
}

// List handles GET /orders for the authenticated customer.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	orders, total, err := h.Svc.Orders.List(r.Context(), store.OrderFilter{
		UserID:  common.UserID(r.Context()),
		Status:  strings.TrimSpace(r.URL.Query().Get("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load orders", nil)
		return
	}
	if orders == nil {
		orders = []store.Order{}
	}
	common.JSONList(w, http.StatusOK, orders, common.Pagination{Page: page, PerPage: perPage, TotalItems: total})
}

// Get handles GET /orders/{id}. Customers only see their own orders.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	placed, err := h.Svc.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load order", nil)
		return
	}
	if placed.UserID != common.UserID(r.Context()) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	common.JSON(w, http.StatusOK, placed)
}

// AdminHandler serves the back-office order endpoints.
type AdminHandler struct {
	Svc *Service
}

type statusPayload struct {
	Status string `json:"status"`
}

// List handles GET /admin/orders with optional status filtering.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := common.ParsePagination(r, 20)
	orders, total, err := h.Svc.Orders.List(r.Context(), store.OrderFilter{
		Status:  strings.TrimSpace(r.URL.Query().Get("status")),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load orders", nil)
		return
	}
	if orders == nil {
		orders = []store.Order{}
	}
	common.JSONList(w, http.StatusOK, orders, common.Pagination{Page: page, PerPage: perPage, TotalItems: total})
}

// Get handles GET /admin/orders/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	placed, err := h.Svc.Orders.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, placed)
}

// UpdateStatus handles PATCH /admin/orders/{id}/status.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var payload statusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	updated, err := h.Svc.UpdateStatus(r.Context(), chi.URLParam(r, "id"), strings.ToUpper(strings.TrimSpace(payload.Status)))
	if err != nil {
		common.WriteAppError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, updated)
}
