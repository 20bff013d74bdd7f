package coupon

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/obs"
	"github.com/sofreh/backend-resto/internal/store"
)

// Handler exposes the public validate endpoint and admin coupon management.
type Handler struct {
	Svc      *Service
	Repo     *store.CouponRepo
	Validate *validator.Validate
}

type validateRequest struct {
	Code string `json:"code" validate:"required"`
	Cart struct {
		Items []struct {
			ItemID      string   `json:"itemId"`
			CategoryIDs []string `json:"categoryIds"`
			Qty         int      `json:"qty"`
			Price       int64    `json:"price"`
		} `json:"items"`
		Subtotal    int64 `json:"subtotal"`
		ShippingFee int64 `json:"shippingFee"`
	} `json:"cart"`
}

// ValidateCoupon evaluates a coupon against the submitted cart and returns the
// discount it would produce. Nothing is persisted.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var payload validateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "code is required", nil)
			return
		}
	}
	items := make([]Item, 0, len(payload.Cart.Items))
	for _, line := range payload.Cart.Items {
		items = append(items, Item{
			ItemID:      line.ItemID,
			CategoryIDs: line.CategoryIDs,
			Subtotal:    line.Price * int64(line.Qty),
		})
	}
	userID := common.UserID(r.Context())
	result, err := h.Svc.Preview(r.Context(), payload.Code, userID, payload.Cart.Subtotal, items)
	if err != nil {
		if obs.CouponValidationTotal != nil {
			obs.CouponValidationTotal.WithLabelValues("rejected").Inc()
		}
		h.writeValidateError(w, err)
		return
	}
	if obs.CouponValidationTotal != nil {
		obs.CouponValidationTotal.WithLabelValues("accepted").Inc()
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"code":          result.Code,
		"totalDiscount": result.Discount,
	})
}

func (h *Handler) writeValidateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrMinimumSpendUnmet):
		common.JSONError(w, http.StatusUnprocessableEntity, "MIN_SPEND_UNMET", "cart does not meet the coupon minimum spend", nil)
	case errors.Is(err, ErrUsageLimitReached), errors.Is(err, ErrPerUserLimitReached):
		common.JSONError(w, http.StatusUnprocessableEntity, "USAGE_LIMIT", "coupon usage limit reached", nil)
	case errors.Is(err, ErrExpired):
		common.JSONError(w, http.StatusUnprocessableEntity, "EXPIRED", "coupon has expired", nil)
	case errors.Is(err, ErrInactive):
		common.JSONError(w, http.StatusUnprocessableEntity, "INACTIVE", "coupon is not active", nil)
	case errors.Is(err, ErrNotEligible):
		common.JSONError(w, http.StatusUnprocessableEntity, "NOT_ELIGIBLE", "coupon cannot be applied to this cart", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to validate coupon", nil)
	}
}

type adminPayload struct {
	Code         string     `json:"code" validate:"required,min=2,max=32"`
	Kind         string     `json:"kind" validate:"required,oneof=fixed percent"`
	Value        int64      `json:"value" validate:"gte=0"`
	PercentBps   *int32     `json:"percentBps" validate:"omitempty,gt=0,lte=10000"`
	MinSpend     int64      `json:"minSpend" validate:"gte=0"`
	UsageLimit   *int32     `json:"usageLimit" validate:"omitempty,gte=0"`
	PerUserLimit *int32     `json:"perUserLimit" validate:"omitempty,gte=0"`
	ValidFrom    *time.Time `json:"validFrom"`
	ValidTo      *time.Time `json:"validTo"`
	ItemIDs      []string   `json:"itemIds"`
	CategoryIDs  []string   `json:"categoryIds"`
	Active       *bool      `json:"active"`
}

func (p adminPayload) toModel() store.Coupon {
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return store.Coupon{
		Code:         strings.ToUpper(strings.TrimSpace(p.Code)),
		Kind:         strings.ToLower(p.Kind),
		Value:        p.Value,
		PercentBps:   p.PercentBps,
		MinSpend:     p.MinSpend,
		UsageLimit:   p.UsageLimit,
		PerUserLimit: p.PerUserLimit,
		ValidFrom:    p.ValidFrom,
		ValidTo:      p.ValidTo,
		ItemIDs:      p.ItemIDs,
		CategoryIDs:  p.CategoryIDs,
		Active:       active,
	}
}

// AdminList returns all coupons.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Repo.List(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to list coupons", nil)
		return
	}
	common.JSON(w, http.StatusOK, coupons)
}

// AdminCreate inserts a new coupon.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	var payload adminPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid coupon", validationDetails(err))
		return
	}
	coupon, err := h.Repo.Create(r.Context(), payload.toModel())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create coupon", nil)
		return
	}
	common.JSON(w, http.StatusCreated, coupon)
}

// AdminUpdate mutates an existing coupon.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	var payload adminPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.Validate.Struct(payload); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "invalid coupon", validationDetails(err))
		return
	}
	model := payload.toModel()
	model.ID = id
	coupon, err := h.Repo.Update(r.Context(), model)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "coupon code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update coupon", nil)
		return
	}
	common.JSON(w, http.StatusOK, coupon)
}

// AdminDelete removes a coupon.
func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if err := h.Repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "coupon not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete coupon", nil)
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
