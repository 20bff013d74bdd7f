package order_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sofreh/backend-resto/internal/common"
	"github.com/sofreh/backend-resto/internal/coupon"
	"github.com/sofreh/backend-resto/internal/events"
	"github.com/sofreh/backend-resto/internal/obs"
	"github.com/sofreh/backend-resto/internal/order"
	"github.com/sofreh/backend-resto/internal/store"
)

func init() {
	obs.MustRegisterDomainMetrics("resto", prometheus.NewRegistry())
}

type fakeBackend struct {
	items     map[string]store.MenuItem
	addOns    map[string]store.AddOn
	addresses map[string]store.Address
	users     map[string]store.User
	zones     map[string]store.Zone
	coupons   map[string]store.Coupon

	slotReserved int
	slotReleased int
	slotFull     bool

	orders      map[string]store.Order
	nextID      int
	redemptions []int64
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		items:     map[string]store.MenuItem{},
		addOns:    map[string]store.AddOn{},
		addresses: map[string]store.Address{},
		users:     map[string]store.User{},
		zones:     map[string]store.Zone{},
		coupons:   map[string]store.Coupon{},
		orders:    map[string]store.Order{},
	}
}

func (f *fakeBackend) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

func (f *fakeBackend) GetItems(_ context.Context, ids []string) ([]store.MenuItem, error) {
	var out []store.MenuItem
	for _, id := range ids {
		if m, ok := f.items[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetAddOns(_ context.Context, ids []string) ([]store.AddOn, error) {
	var out []store.AddOn
	for _, id := range ids {
		if a, ok := f.addOns[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeBackend) GetAddress(_ context.Context, userID, id string) (store.Address, error) {
	a, ok := f.addresses[id]
	if !ok || a.UserID != userID {
		return store.Address{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeBackend) Get(_ context.Context, id string) (store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeBackend) GetZone(ctx context.Context, id string) (store.Zone, error) {
	z, ok := f.zones[id]
	if !ok {
		return store.Zone{}, store.ErrNotFound
	}
	return z, nil
}

func (f *fakeBackend) ReserveSlot(_ context.Context, _ pgx.Tx, zoneID, date, window string) error {
	if f.slotFull {
		return store.ErrSlotFull
	}
	f.slotReserved++
	return nil
}

func (f *fakeBackend) ReleaseSlot(_ context.Context, zoneID, date, window string) error {
	f.slotReleased++
	return nil
}

func (f *fakeBackend) NextNumber(_ context.Context, _ pgx.Tx, now time.Time) (string, error) {
	return fmt.Sprintf("SO-%s-%04d", now.Format("20060102"), f.nextID+1), nil
}

func (f *fakeBackend) Create(_ context.Context, _ pgx.Tx, o store.Order) (store.Order, error) {
	f.nextID++
	o.ID = fmt.Sprintf("o-%d", f.nextID)
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeBackend) GetOrder(_ context.Context, id string) (store.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (f *fakeBackend) List(_ context.Context, filter store.OrderFilter) ([]store.Order, int, error) {
	var out []store.Order
	for _, o := range f.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (f *fakeBackend) UpdateStatus(_ context.Context, id, status string) (store.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	o.Status = status
	f.orders[id] = o
	return o, nil
}

func (f *fakeBackend) RecordRedemption(_ context.Context, _ pgx.Tx, couponID, orderID, userID string, amount int64) error {
	f.redemptions = append(f.redemptions, amount)
	return nil
}

func (f *fakeBackend) GetByCode(_ context.Context, code string) (store.Coupon, error) {
	c, ok := f.coupons[code]
	if !ok {
		return store.Coupon{}, store.ErrNotFound
	}
	return c, nil
}

func (f *fakeBackend) CountRedemptionsByUser(context.Context, string, string) (int64, error) {
	return 0, nil
}

type zoneAdapter struct{ *fakeBackend }

func (z zoneAdapter) Get(ctx context.Context, id string) (store.Zone, error) {
	return z.GetZone(ctx, id)
}

type orderAdapter struct{ *fakeBackend }

func (o orderAdapter) Get(ctx context.Context, id string) (store.Order, error) {
	return o.GetOrder(ctx, id)
}

type memRecorder struct{}

func (memRecorder) Append(_ context.Context, topic string, payload []byte) (store.Event, error) {
	return store.Event{ID: "e-1", Topic: topic, Payload: payload}, nil
}

type memSMS struct{ sent []string }

func (m *memSMS) DispatchSMS(_ context.Context, to, body string) error {
	m.sent = append(m.sent, to+": "+body)
	return nil
}

func seed(f *fakeBackend) {
	f.items["m-1"] = store.MenuItem{
		ID: "m-1", Name: "Koobideh", Price: 120000, Available: true,
		CategoryIDs: []string{"c-grill"},
		Variants:    []store.Variant{{Name: "double", PriceDelta: 60000}},
		AddOnIDs:    []string{"a-1"},
	}
	f.items["m-2"] = store.MenuItem{ID: "m-2", Name: "Off Menu", Price: 90000, Available: false}
	f.addOns["a-1"] = store.AddOn{ID: "a-1", Name: "Extra rice", Price: 25000, Active: true}
	f.users["u-1"] = store.User{ID: "u-1", Phone: "+989123456789"}
	f.addresses["addr-1"] = store.Address{ID: "addr-1", UserID: "u-1", ZoneID: "z-1"}
	f.zones["z-1"] = store.Zone{ID: "z-1", Name: "Downtown", DeliveryFee: 30000, MinOrder: 100000, Active: true}
	f.coupons["EID20"] = store.Coupon{
		ID: "cp-1", Code: "EID20", Kind: "fixed", Value: 50000, Active: true,
	}
}

func newService(f *fakeBackend) (*order.Service, *memSMS) {
	sms := &memSMS{}
	return &order.Service{
		Tx:          f,
		Catalog:     f,
		Addresses:   f,
		Zones:       zoneAdapter{f},
		Orders:      orderAdapter{f},
		Redemptions: f,
		Coupons:     &coupon.Service{Q: f},
		Bus:         events.NewBus(memRecorder{}, zerolog.Nop()),
		Dispatcher:  sms,
		TaxBps:      900,
		Now:         func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) },
	}, sms
}

func deliveryInput() order.CheckoutInput {
	return order.CheckoutInput{
		UserID:  "u-1",
		Channel: "web",
		Items: []order.CheckoutItem{
			{ItemID: "m-1", Qty: 2, Variant: "double", AddOns: []string{"a-1"}},
		},
		Delivery: order.CheckoutDelivery{
			Method:    order.MethodDelivery,
			AddressID: "addr-1",
			Slot:      order.CheckoutSlot{Date: "2026-03-11", Window: "12:00-14:00"},
		},
		PaymentMethod: "cod",
	}
}

func TestCheckoutPlacesDeliveryOrder(t *testing.T) {
	f := newBackend()
	seed(f)
	svc, sms := newService(f)

	placed, err := svc.Checkout(context.Background(), deliveryInput())
	require.NoError(t, err)

	// unit 120000 + 60000 variant + 25000 add-on = 205000, twice
	require.EqualValues(t, 410000, placed.Subtotal)
	require.EqualValues(t, 30000, placed.Shipping)
	require.EqualValues(t, 0, placed.Discount)
	// 9% tax on 410000
	require.EqualValues(t, 36900, placed.Tax)
	require.EqualValues(t, 476900, placed.Total)
	require.Equal(t, order.StatusNew, placed.Status)
	require.Equal(t, "SO-20260310-0001", placed.Number)
	require.Len(t, placed.Items, 1)
	require.EqualValues(t, 205000, placed.Items[0].UnitPrice)

	require.Equal(t, 1, f.slotReserved)
	require.Len(t, sms.sent, 1)
}

func TestCheckoutAppliesCoupon(t *testing.T) {
	f := newBackend()
	seed(f)
	svc, _ := newService(f)

	in := deliveryInput()
	in.CouponCode = "EID20"
	placed, err := svc.Checkout(context.Background(), in)
	require.NoError(t, err)

	require.EqualValues(t, 50000, placed.Discount)
	// tax applies to the discounted base
	require.EqualValues(t, 32400, placed.Tax)
	require.EqualValues(t, 422400, placed.Total)
	require.Equal(t, []int64{50000}, f.redemptions)
}

func TestCheckoutRejectsExpiredCoupon(t *testing.T) {
	f := newBackend()
	seed(f)
	past := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := f.coupons["EID20"]
	c.ValidTo = &past
	f.coupons["EID20"] = c
	svc, _ := newService(f)

	in := deliveryInput()
	in.CouponCode = "EID20"
	_, err := svc.Checkout(context.Background(), in)
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "COUPON_EXPIRED", appErr.Code)
}

func TestCheckoutSlotFull(t *testing.T) {
	f := newBackend()
	seed(f)
	f.slotFull = true
	svc, _ := newService(f)

	_, err := svc.Checkout(context.Background(), deliveryInput())
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "SLOT_FULL", appErr.Code)
	require.Equal(t, 409, appErr.HTTPStatus)
	require.Empty(t, f.orders)
}

func TestCheckoutBelowZoneMinimum(t *testing.T) {
	f := newBackend()
	seed(f)
	z := f.zones["z-1"]
	z.MinOrder = 1000000
	f.zones["z-1"] = z
	svc, _ := newService(f)

	_, err := svc.Checkout(context.Background(), deliveryInput())
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "MIN_ORDER", appErr.Code)
}

func TestCheckoutUnavailableItem(t *testing.T) {
	f := newBackend()
	seed(f)
	svc, _ := newService(f)

	in := deliveryInput()
	in.Items = []order.CheckoutItem{{ItemID: "m-2", Qty: 1}}
	_, err := svc.Checkout(context.Background(), in)
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "ITEM_UNAVAILABLE", appErr.Code)
}

func TestCheckoutPickupSkipsSlotAndShipping(t *testing.T) {
	f := newBackend()
	seed(f)
	svc, _ := newService(f)

	in := deliveryInput()
	in.Delivery = order.CheckoutDelivery{Method: order.MethodPickup}
	placed, err := svc.Checkout(context.Background(), in)
	require.NoError(t, err)
	require.EqualValues(t, 0, placed.Shipping)
	require.Equal(t, 0, f.slotReserved)
}

func TestCheckoutValidation(t *testing.T) {
	f := newBackend()
	seed(f)
	svc, _ := newService(f)

	in := deliveryInput()
	in.Items = nil
	_, err := svc.Checkout(context.Background(), in)
	require.NotNil(t, common.AsAppError(err))

	in = deliveryInput()
	in.PaymentMethod = "crypto"
	_, err = svc.Checkout(context.Background(), in)
	require.NotNil(t, common.AsAppError(err))

	in = deliveryInput()
	in.Items[0].Qty = 0
	_, err = svc.Checkout(context.Background(), in)
	require.NotNil(t, common.AsAppError(err))

	in = deliveryInput()
	in.Items[0].Variant = "missing"
	_, err = svc.Checkout(context.Background(), in)
	require.NotNil(t, common.AsAppError(err))
}

func TestCheckoutPaymentMethods(t *testing.T) {
	f := newBackend()
	seed(f)
	svc, _ := newService(f)

	for _, method := range []string{"online", "cod", "pos", "wallet", "mixed"} {
		in := deliveryInput()
		in.PaymentMethod = method
		placed, err := svc.Checkout(context.Background(), in)
		require.NoError(t, err, "method %s should be accepted", method)
		require.Equal(t, method, placed.PaymentMethod)
	}
}

func TestUpdateStatusLadder(t *testing.T) {
	f := newBackend()
	seed(f)
	svc, _ := newService(f)

	placed, err := svc.Checkout(context.Background(), deliveryInput())
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), placed.ID, order.StatusConfirmed)
	require.NoError(t, err)
	require.Equal(t, order.StatusConfirmed, updated.Status)

	// skipping forward is allowed
	updated, err = svc.UpdateStatus(context.Background(), placed.ID, order.StatusOutForDelivery)
	require.NoError(t, err)
	require.Equal(t, order.StatusOutForDelivery, updated.Status)

	// moving backwards is not
	_, err = svc.UpdateStatus(context.Background(), placed.ID, order.StatusPreparing)
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "INVALID_TRANSITION", appErr.Code)

	updated, err = svc.UpdateStatus(context.Background(), placed.ID, order.StatusDelivered)
	require.NoError(t, err)
	require.Equal(t, order.StatusDelivered, updated.Status)

	// terminal
	_, err = svc.UpdateStatus(context.Background(), placed.ID, order.StatusCanceled)
	require.NotNil(t, common.AsAppError(err))
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newBackend()
	seed(f)
	svc, _ := newService(f)

	placed, err := svc.Checkout(context.Background(), deliveryInput())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), placed.ID, order.StatusCanceled)
	require.NoError(t, err)
	require.Equal(t, 1, f.slotReleased)
}

func TestCustomerCancel(t *testing.T) {
	f := newBackend()
	seed(f)
	svc, _ := newService(f)

	placed, err := svc.Checkout(context.Background(), deliveryInput())
	require.NoError(t, err)

	// another customer cannot even see the order
	_, err = svc.Cancel(context.Background(), "u-2", placed.ID)
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)

	canceled, err := svc.Cancel(context.Background(), "u-1", placed.ID)
	require.NoError(t, err)
	require.Equal(t, order.StatusCanceled, canceled.Status)
	require.Equal(t, 1, f.slotReleased)
}

func TestCustomerCancelOnlyWhileNew(t *testing.T) {
	f := newBackend()
	seed(f)
	svc, _ := newService(f)

	placed, err := svc.Checkout(context.Background(), deliveryInput())
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), placed.ID, order.StatusPreparing)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), "u-1", placed.ID)
	appErr := common.AsAppError(err)
	require.NotNil(t, appErr)
	require.Equal(t, "INVALID_TRANSITION", appErr.Code)
}
