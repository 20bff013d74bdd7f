package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/coupon"
	"github.com/sofreh/backend-resto/internal/events"
	"github.com/sofreh/backend-resto/internal/obs"
	"github.com/sofreh/backend-resto/internal/pricing"
	"github.com/sofreh/backend-resto/internal/store"
)

// Delivery methods accepted at checkout.
const (
	MethodDelivery = "delivery"
	MethodPickup   = "pickup"
)

// Catalog is the menu surface checkout reads prices from.
type Catalog interface {
	GetItems(ctx context.Context, ids []string) ([]store.MenuItem, error)
	GetAddOns(ctx context.Context, ids []string) ([]store.AddOn, error)
}

// Addresses resolves the buyer's saved addresses.
type Addresses interface {
	GetAddress(ctx context.Context, userID, id string) (store.Address, error)
	Get(ctx context.Context, id string) (store.User, error)
}

// Zones covers delivery fees and slot capacity.
type Zones interface {
	Get(ctx context.Context, id string) (store.Zone, error)
	ReserveSlot(ctx context.Context, tx pgx.Tx, zoneID, date, window string) error
	ReleaseSlot(ctx context.Context, zoneID, date, window string) error
}

// Orders persists and reads back placed orders.
type Orders interface {
	NextNumber(ctx context.Context, tx pgx.Tx, now time.Time) (string, error)
	Create(ctx context.Context, tx pgx.Tx, o store.Order) (store.Order, error)
	Get(ctx context.Context, id string) (store.Order, error)
	List(ctx context.Context, f store.OrderFilter) ([]store.Order, int, error)
	UpdateStatus(ctx context.Context, id, status string) (store.Order, error)
}

// Redemptions records coupon usage inside the checkout transaction.
type Redemptions interface {
	RecordRedemption(ctx context.Context, tx pgx.Tx, couponID, orderID, userID string, amount int64) error
}

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Locker serializes slot reservations across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Dispatcher sends the order confirmation SMS.
type Dispatcher interface {
	DispatchSMS(ctx context.Context, to, body string) error
}

// Service drives checkout and the order lifecycle.
type Service struct {
	Tx          TxRunner
	Catalog     Catalog
	Addresses   Addresses
	Zones       Zones
	Orders      Orders
	Redemptions Redemptions
	Coupons     *coupon.Service
	Bus         *events.Bus
	Locker      Locker
	Dispatcher  Dispatcher
	TaxBps      int
	LockTTL     time.Duration
	Now         func() time.Time
}

// CheckoutItem is one requested line.
type CheckoutItem struct {
	ItemID  string   `json:"itemId"`
	Qty     int      `json:"qty"`
	Variant string   `json:"variant,omitempty"`
	AddOns  []string `json:"addOns,omitempty"`
	Note    string   `json:"note,omitempty"`
}

// CheckoutSlot names the requested delivery window.
type CheckoutSlot struct {
	Date   string `json:"date"`
	Window string `json:"window"`
}

// CheckoutDelivery describes how the order should be fulfilled.
type CheckoutDelivery struct {
	Method    string       `json:"method"`
	AddressID string       `json:"addressId,omitempty"`
	Slot      CheckoutSlot `json:"slot"`
}

// paymentMethods is the set the ordering clients offer at checkout.
var paymentMethods = map[string]bool{
	"online": true,
	"cod":    true,
	"pos":    true,
	"wallet": true,
	"mixed":  true,
}

// CheckoutInput is the full checkout request.
type CheckoutInput struct {
	UserID        string
	Channel       string
	Items         []CheckoutItem
	Delivery      CheckoutDelivery
	CouponCode    string
	Note          string
	PaymentMethod string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

func (s *Service) withLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if s.Locker == nil {
		return fn(ctx)
	}
	return s.Locker.WithLock(ctx, key, s.lockTTL(), fn)
}

// Checkout prices the requested lines from the catalog, revalidates the
// coupon, reserves the delivery slot and persists the order atomically.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (store.Order, error) {
	channel := strings.TrimSpace(in.Channel)
	if channel == "" {
		channel = "web"
	}
	placed, err := s.checkout(ctx, in, channel)
	if err != nil {
		obs.OrdersPlacedTotal.WithLabelValues(channel, "rejected").Inc()
		return store.Order{}, err
	}
	obs.OrdersPlacedTotal.WithLabelValues(channel, "placed").Inc()
	return placed, nil
}

func (s *Service) checkout(ctx context.Context, in CheckoutInput, channel string) (store.Order, error) {
	if len(in.Items) == 0 {
		return store.Order{}, common.NewAppError("VALIDATION", "order has no items", http.StatusUnprocessableEntity, nil)
	}
	if !paymentMethods[in.PaymentMethod] {
		return store.Order{}, common.NewAppError("VALIDATION", "unsupported payment method", http.StatusUnprocessableEntity, nil)
	}

	lines, menuByLine, err := s.priceLines(ctx, in.Items)
	if err != nil {
		return store.Order{}, err
	}
	var subtotal int64
	priceItems := make([]pricing.Item, 0, len(lines))
	for _, line := range lines {
		subtotal += line.Subtotal
		priceItems = append(priceItems, pricing.Item{Qty: line.Qty, UnitPrice: pricing.Money(line.UnitPrice)})
	}

	var shipping int64
	var zone store.Zone
	switch in.Delivery.Method {
	case MethodPickup:
	case MethodDelivery:
		address, err := s.Addresses.GetAddress(ctx, in.UserID, in.Delivery.AddressID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return store.Order{}, common.NewAppError("NOT_FOUND", "address not found", http.StatusNotFound, nil)
			}
			return store.Order{}, fmt.Errorf("load address: %w", err)
		}
		if address.ZoneID == "" {
			return store.Order{}, common.NewAppError("ZONE_UNCOVERED", "address is outside the service area", http.StatusUnprocessableEntity, nil)
		}
		zone, err = s.Zones.Get(ctx, address.ZoneID)
		if err != nil || !zone.Active {
			return store.Order{}, common.NewAppError("ZONE_UNCOVERED", "address is outside the service area", http.StatusUnprocessableEntity, nil)
		}
		if subtotal < zone.MinOrder {
			return store.Order{}, common.NewAppError("MIN_ORDER", "order is below the zone minimum", http.StatusUnprocessableEntity, nil)
		}
		if in.Delivery.Slot.Date == "" || in.Delivery.Slot.Window == "" {
			return store.Order{}, common.NewAppError("VALIDATION", "delivery slot is required", http.StatusUnprocessableEntity, nil)
		}
		shipping = zone.DeliveryFee
	default:
		return store.Order{}, common.NewAppError("VALIDATION", "unsupported delivery method", http.StatusUnprocessableEntity, nil)
	}

	var discount int64
	var couponID string
	code := strings.TrimSpace(in.CouponCode)
	if code != "" {
		couponItems := make([]coupon.Item, 0, len(lines))
		for i, line := range lines {
			couponItems = append(couponItems, coupon.Item{
				ItemID:      line.ItemID,
				CategoryIDs: menuByLine[i].CategoryIDs,
				Subtotal:    line.Subtotal,
			})
		}
		preview, err := s.Coupons.Preview(ctx, code, in.UserID, subtotal, couponItems)
		if err != nil {
			return store.Order{}, couponError(err)
		}
		discount = preview.Discount
		couponID = preview.CouponID
	}

	summary := pricing.Compute(priceItems, pricing.Money(discount), s.TaxBps, pricing.Money(shipping))

	order := store.Order{
		UserID:         in.UserID,
		Channel:        channel,
		Status:         StatusNew,
		Subtotal:       int64(summary.Subtotal),
		Discount:       int64(summary.Discount),
		Shipping:       int64(summary.Shipping),
		Tax:            int64(summary.Tax),
		Total:          int64(summary.Total),
		CouponCode:     code,
		Note:           strings.TrimSpace(in.Note),
		DeliveryMethod: in.Delivery.Method,
		AddressID:      in.Delivery.AddressID,
		SlotDate:       in.Delivery.Slot.Date,
		SlotWindow:     in.Delivery.Slot.Window,
		PaymentMethod:  in.PaymentMethod,
		Items:          lines,
	}

	persist := func(ctx context.Context) error {
		return s.Tx.WithTx(ctx, func(tx pgx.Tx) error {
			if in.Delivery.Method == MethodDelivery {
				if err := s.Zones.ReserveSlot(ctx, tx, zone.ID, order.SlotDate, order.SlotWindow); err != nil {
					obs.SlotReservationTotal.WithLabelValues("rejected").Inc()
					return err
				}
				obs.SlotReservationTotal.WithLabelValues("reserved").Inc()
			}
			number, err := s.Orders.NextNumber(ctx, tx, s.now())
			if err != nil {
				return fmt.Errorf("next order number: %w", err)
			}
			order.Number = number
			created, err := s.Orders.Create(ctx, tx, order)
			if err != nil {
				return fmt.Errorf("create order: %w", err)
			}
			order = created
			if couponID != "" {
				if err := s.Redemptions.RecordRedemption(ctx, tx, couponID, order.ID, in.UserID, discount); err != nil {
					return fmt.Errorf("record redemption: %w", err)
				}
			}
			return nil
		})
	}

	if in.Delivery.Method == MethodDelivery {
		key := fmt.Sprintf("lock:slot:%s:%s:%s", zone.ID, order.SlotDate, order.SlotWindow)
		err = s.withLock(ctx, key, persist)
	} else {
		err = persist(ctx)
	}
	if err != nil {
		if errors.Is(err, store.ErrSlotFull) {
			return store.Order{}, common.NewAppError("SLOT_FULL", "delivery window is fully booked", http.StatusConflict, err)
		}
		return store.Order{}, err
	}

	s.publishPlaced(ctx, order, couponID)
	s.sendConfirmation(ctx, order)
	return order, nil
}

func (s *Service) priceLines(ctx context.Context, items []CheckoutItem) ([]store.OrderItem, []store.MenuItem, error) {
	ids := make([]string, 0, len(items))
	addOnIDs := make([]string, 0)
	for _, it := range items {
		if strings.TrimSpace(it.ItemID) == "" || it.Qty < 1 {
			return nil, nil, common.NewAppError("VALIDATION", "every line needs an item and a positive quantity", http.StatusUnprocessableEntity, nil)
		}
		ids = append(ids, it.ItemID)
		addOnIDs = append(addOnIDs, it.AddOns...)
	}

	menuItems, err := s.Catalog.GetItems(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load items: %w", err)
	}
	menuByID := make(map[string]store.MenuItem, len(menuItems))
	for _, m := range menuItems {
		menuByID[m.ID] = m
	}

	addOnByID := map[string]store.AddOn{}
	if len(addOnIDs) > 0 {
		addOns, err := s.Catalog.GetAddOns(ctx, addOnIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("load add-ons: %w", err)
		}
		for _, a := range addOns {
			addOnByID[a.ID] = a
		}
	}

	lines := make([]store.OrderItem, 0, len(items))
	menus := make([]store.MenuItem, 0, len(items))
	for _, it := range items {
		menu, ok := menuByID[it.ItemID]
		if !ok || !menu.Available {
			return nil, nil, common.NewAppError("ITEM_UNAVAILABLE", "an item in the order is not available", http.StatusUnprocessableEntity, nil)
		}
		unit := menu.Price
		if it.Variant != "" {
			matched := false
			for _, v := range menu.Variants {
				if v.Name == it.Variant {
					unit += v.PriceDelta
					matched = true
					break
				}
			}
			if !matched {
				return nil, nil, common.NewAppError("VALIDATION", "unknown variant for "+menu.Name, http.StatusUnprocessableEntity, nil)
			}
		}
		allowed := make(map[string]bool, len(menu.AddOnIDs))
		for _, id := range menu.AddOnIDs {
			allowed[id] = true
		}
		var lineAddOns []store.OrderAddOn
		for _, id := range it.AddOns {
			addOn, ok := addOnByID[id]
			if !ok || !addOn.Active || !allowed[id] {
				return nil, nil, common.NewAppError("VALIDATION", "unknown add-on for "+menu.Name, http.StatusUnprocessableEntity, nil)
			}
			unit += addOn.Price
			lineAddOns = append(lineAddOns, store.OrderAddOn{ID: addOn.ID, Name: addOn.Name, Price: addOn.Price})
		}
		lines = append(lines, store.OrderItem{
			ItemID:    menu.ID,
			Name:      menu.Name,
			Variant:   it.Variant,
			UnitPrice: unit,
			Qty:       it.Qty,
			Subtotal:  unit * int64(it.Qty),
			AddOns:    lineAddOns,
			Note:      strings.TrimSpace(it.Note),
		})
		menus = append(menus, menu)
	}
	return lines, menus, nil
}

// UpdateStatus moves an order along the lifecycle ladder. Canceling a
// delivery order hands its slot back.
func (s *Service) UpdateStatus(ctx context.Context, id, next string) (store.Order, error) {
	if !ValidStatus(next) {
		return store.Order{}, common.NewAppError("VALIDATION", "unknown status", http.StatusUnprocessableEntity, nil)
	}
	current, err := s.Orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, nil)
		}
		return store.Order{}, err
	}
	if !CanTransition(current.Status, next) {
		return store.Order{}, common.NewAppError("INVALID_TRANSITION",
			fmt.Sprintf("cannot move order from %s to %s", current.Status, next), http.StatusConflict, nil)
	}
	updated, err := s.Orders.UpdateStatus(ctx, id, next)
	if err != nil {
		return store.Order{}, err
	}
	if next == StatusCanceled && current.DeliveryMethod == MethodDelivery && current.SlotDate != "" {
		if address, err := s.Addresses.GetAddress(ctx, current.UserID, current.AddressID); err == nil && address.ZoneID != "" {
			_ = s.Zones.ReleaseSlot(ctx, address.ZoneID, current.SlotDate, current.SlotWindow)
		}
	}
	if s.Bus != nil {
		s.Bus.Publish(ctx, events.TopicOrderStatus, map[string]string{
			"orderId": updated.ID,
			"number":  updated.Number,
			"from":    current.Status,
			"to":      updated.Status,
		})
	}
	return updated, nil
}

// Cancel lets a customer withdraw their own order while it is still NEW.
// Later stages belong to the kitchen and go through the admin ladder.
func (s *Service) Cancel(ctx context.Context, userID, id string) (store.Order, error) {
	current, err := s.Orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Order{}, common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, nil)
		}
		return store.Order{}, err
	}
	if current.UserID != userID {
		return store.Order{}, common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, nil)
	}
	if current.Status != StatusNew {
		return store.Order{}, common.NewAppError("INVALID_TRANSITION",
			"order is already being prepared and can no longer be canceled", http.StatusConflict, nil)
	}
	return s.UpdateStatus(ctx, id, StatusCanceled)
}

func (s *Service) publishPlaced(ctx context.Context, order store.Order, couponID string) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(ctx, events.TopicOrderPlaced, map[string]any{
		"orderId": order.ID,
		"number":  order.Number,
		"userId":  order.UserID,
		"total":   order.Total,
	})
	if order.DeliveryMethod == MethodDelivery {
		s.Bus.Publish(ctx, events.TopicSlotReserved, map[string]string{
			"orderId": order.ID,
			"date":    order.SlotDate,
			"window":  order.SlotWindow,
		})
	}
	if couponID != "" {
		s.Bus.Publish(ctx, events.TopicCouponRedeemed, map[string]any{
			"orderId":  order.ID,
			"couponId": couponID,
			"code":     order.CouponCode,
			"amount":   order.Discount,
		})
	}
}

func (s *Service) sendConfirmation(ctx context.Context, order store.Order) {
	if s.Dispatcher == nil {
		return
	}
	user, err := s.Addresses.Get(ctx, order.UserID)
	if err != nil || user.Phone == "" {
		return
	}
	body := fmt.Sprintf("Your Sofreh order %s is confirmed. Total: %d", order.Number, order.Total)
	_ = s.Dispatcher.DispatchSMS(ctx, user.Phone, body)
}

func couponError(err error) error {
	switch {
	case errors.Is(err, coupon.ErrUsageLimitReached):
		return common.NewAppError("COUPON_EXHAUSTED", "coupon usage limit reached", http.StatusUnprocessableEntity, err)
	case errors.Is(err, coupon.ErrPerUserLimitReached):
		return common.NewAppError("COUPON_EXHAUSTED", "coupon already used", http.StatusUnprocessableEntity, err)
	case errors.Is(err, coupon.ErrExpired):
		return common.NewAppError("COUPON_EXPIRED", "coupon expired", http.StatusUnprocessableEntity, err)
	case errors.Is(err, coupon.ErrMinimumSpendUnmet):
		return common.NewAppError("COUPON_MIN_SPEND", "order below coupon minimum", http.StatusUnprocessableEntity, err)
	case errors.Is(err, coupon.ErrInactive), errors.Is(err, coupon.ErrNotEligible):
		return common.NewAppError("COUPON_INVALID", "coupon cannot be applied", http.StatusUnprocessableEntity, err)
	default:
		return err
	}
}
