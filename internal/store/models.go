package store

import "time"

// Category groups menu items for browsing and coupon scoping.
type Category struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	NameFa    string    `json:"nameFa,omitempty"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AddOn is an optional extra that can be attached to menu items.
type AddOn struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	NameFa    string    `json:"nameFa,omitempty"`
	Price     int64     `json:"price"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Variant is a named option of a menu item with a price delta.
type Variant struct {
	Name       string `json:"name"`
	PriceDelta int64  `json:"priceDelta"`
}

// MenuItem is one orderable entry on the menu.
type MenuItem struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	NameFa      string    `json:"nameFa,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Price       int64     `json:"price"`
	CategoryIDs []string  `json:"categoryIds"`
	Variants    []Variant `json:"variants,omitempty"`
	AddOnIDs    []string  `json:"addOnIds,omitempty"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Zone is a delivery service area with its fee and minimum order. The fee
// is serialized as shippingFee, the name the admin console and checkout
// use for it.
type Zone struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	DeliveryFee int64     `json:"shippingFee"`
	MinOrder    int64     `json:"minOrder"`
	SortOrder   int       `json:"sortOrder"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Slot is one delivery window on one date with finite capacity.
type Slot struct {
	ID       string `json:"id"`
	ZoneID   string `json:"zoneId"`
	Date     string `json:"date"`
	Window   string `json:"window"`
	Capacity int    `json:"capacity"`
	Reserved int    `json:"reserved"`
}

// User is a customer or admin account.
type User struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone"`
	Name         string    `json:"name,omitempty"`
	Role         string    `json:"role"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Address is one saved delivery address of a user.
type Address struct {
	ID           string    `json:"id"`
	UserID       string    `json:"-"`
	Label        string    `json:"label,omitempty"`
	ReceiverName string    `json:"receiverName"`
	Phone        string    `json:"phone"`
	Line1        string    `json:"line1"`
	Line2        string    `json:"line2,omitempty"`
	ZoneID       string    `json:"zoneId,omitempty"`
	IsDefault    bool      `json:"isDefault"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Coupon is a discount rule validated server side.
type Coupon struct {
	ID           string     `json:"id"`
	Code         string     `json:"code"`
	Kind         string     `json:"kind"`
	Value        int64      `json:"value"`
	PercentBps   *int32     `json:"percentBps,omitempty"`
	MinSpend     int64      `json:"minSpend"`
	UsageLimit   *int32     `json:"usageLimit,omitempty"`
	UsedCount    int32      `json:"usedCount"`
	PerUserLimit *int32     `json:"perUserLimit,omitempty"`
	ValidFrom    *time.Time `json:"validFrom,omitempty"`
	ValidTo      *time.Time `json:"validTo,omitempty"`
	ItemIDs      []string   `json:"itemIds,omitempty"`
	CategoryIDs  []string   `json:"categoryIds,omitempty"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// OrderAddOn snapshots one selected add-on on an order line.
type OrderAddOn struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// OrderItem is one priced line of a placed order.
type OrderItem struct {
	ID        string       `json:"id"`
	OrderID   string       `json:"-"`
	ItemID    string       `json:"itemId"`
	Name      string       `json:"name"`
	Variant   string       `json:"variant,omitempty"`
	UnitPrice int64        `json:"unitPrice"`
	Qty       int          `json:"qty"`
	Subtotal  int64        `json:"subtotal"`
	AddOns    []OrderAddOn `json:"addOns,omitempty"`
	Note      string       `json:"note,omitempty"`
}

// Order is a placed order with its price breakdown and fulfilment info.
type Order struct {
	ID             string      `json:"id"`
	Number         string      `json:"number"`
	UserID         string      `json:"userId,omitempty"`
	Channel        string      `json:"channel"`
	Status         string      `json:"status"`
	Subtotal       int64       `json:"subtotal"`
	Discount       int64       `json:"discount"`
	Shipping       int64       `json:"shipping"`
	Tax            int64       `json:"tax"`
	Total          int64       `json:"total"`
	CouponCode     string      `json:"couponCode,omitempty"`
	Note           string      `json:"note,omitempty"`
	DeliveryMethod string      `json:"deliveryMethod"`
	AddressID      string      `json:"addressId,omitempty"`
	SlotDate       string      `json:"slotDate,omitempty"`
	SlotWindow     string      `json:"slotWindow,omitempty"`
	PaymentMethod  string      `json:"paymentMethod"`
	Items          []OrderItem `json:"items,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Event is one persisted domain event.
type Event struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"createdAt"`
}
