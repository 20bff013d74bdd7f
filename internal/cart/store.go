package cart

import (
	"errors"
	"sync"
)

// ErrInvalidInput is returned when the provided payload is invalid.
var ErrInvalidInput = errors.New("invalid input")

// AddOn is an optional extra attached to a line item with its own price.
// Price is snapshotted at selection time; later catalog changes do not
// retroactively affect lines already in the cart.
type AddOn struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// Item is one line in the draft order. The pair (ID, Variant) is the
// effective identity of a line. Price is the unit price inclusive of the
// variant delta and add-on prices, computed once at add time.
type Item struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Image       string   `json:"image,omitempty"`
	Price       int64    `json:"price"`
	Qty         int      `json:"qty"`
	Variant     string   `json:"variant,omitempty"`
	AddOns      []AddOn  `json:"addOns,omitempty"`
	Note        string   `json:"note,omitempty"`
	CategoryIDs []string `json:"categoryIds,omitempty"`
}

// State is the aggregate draft-order state. Discount is only ever set
// together with CouponCode.
type State struct {
	Items      []Item `json:"items"`
	Note       string `json:"note,omitempty"`
	CouponCode string `json:"couponCode,omitempty"`
	Discount   int64  `json:"discount"`
}

// Subtotal sums price times qty over all lines. It is recomputed from the
// current items on every call rather than cached.
func (s State) Subtotal() int64 {
	var sum int64
	for _, item := range s.Items {
		sum += item.Price * int64(item.Qty)
	}
	return sum
}

// Subscriber receives a snapshot of the state after each mutation.
type Subscriber func(State)

// Store holds the single authoritative draft-order state for one session
// and exposes atomic mutation operations. It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	state State

	subMu   sync.Mutex
	nextSub int
	subs    map[int]Subscriber
}

// NewStore constructs an empty cart store.
func NewStore() *Store {
	return &Store{subs: make(map[int]Subscriber)}
}

// Subscribe registers fn to be invoked with a snapshot after every
// mutation. The returned function removes the subscription.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(snapshot State) {
	s.subMu.Lock()
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(snapshot)
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

func copyState(st State) State {
	out := st
	out.Items = make([]Item, len(st.Items))
	for i, item := range st.Items {
		copied := item
		if len(item.AddOns) > 0 {
			copied.AddOns = append([]AddOn(nil), item.AddOns...)
		}
		if len(item.CategoryIDs) > 0 {
			copied.CategoryIDs = append([]string(nil), item.CategoryIDs...)
		}
		out.Items[i] = copied
	}
	return out
}

// AddItem appends a new line. Identical (ID, Variant) lines are kept as
// separate entries rather than merged.
func (s *Store) AddItem(item Item) error {
	if item.ID == "" {
		return ErrInvalidInput
	}
	if item.Qty < 1 {
		return ErrInvalidInput
	}
	if item.Price < 0 {
		return ErrInvalidInput
	}
	for _, addOn := range item.AddOns {
		if addOn.Price < 0 {
			return ErrInvalidInput
		}
	}
	s.mu.Lock()
	s.state.Items = append(s.state.Items, item)
	snapshot := copyState(s.state)
	s.mu.Unlock()
	s.notify(snapshot)
	return nil
}

// UpdateQty sets the quantity of the first line matching itemID to
// nextQty verbatim, including zero or negative values. The caller owns
// the qty < 1 means remove policy. Unmatched identifiers are a no-op.
func (s *Store) UpdateQty(itemID string, nextQty int) {
	s.mu.Lock()
	changed := false
	for i := range s.state.Items {
		if s.state.Items[i].ID == itemID {
			s.state.Items[i].Qty = nextQty
			changed = true
			break
		}
	}
	var snapshot State
	if changed {
		snapshot = copyState(s.state)
	}
	s.mu.Unlock()
	if changed {
		s.notify(snapshot)
	}
}

// RemoveItem deletes the first line matching itemID. No-op if not found.
func (s *Store) RemoveItem(itemID string) {
	s.mu.Lock()
	removed := false
	for i := range s.state.Items {
		if s.state.Items[i].ID == itemID {
			s.state.Items = append(s.state.Items[:i], s.state.Items[i+1:]...)
			removed = true
			break
		}
	}
	var snapshot State
	if removed {
		snapshot = copyState(s.state)
	}
	s.mu.Unlock()
	if removed {
		s.notify(snapshot)
	}
}

// SetItemNote sets or clears the per-line note on the first line matching
// itemID. Unmatched identifiers are a no-op.
func (s *Store) SetItemNote(itemID, note string) {
	s.mu.Lock()
	changed := false
	for i := range s.state.Items {
		if s.state.Items[i].ID == itemID {
			s.state.Items[i].Note = note
			changed = true
			break
		}
	}
	var snapshot State
	if changed {
		snapshot = copyState(s.state)
	}
	s.mu.Unlock()
	if changed {
		s.notify(snapshot)
	}
}

// SetOrderNote sets or clears the order-level note.
func (s *Store) SetOrderNote(note string) {
	s.mu.Lock()
	s.state.Note = note
	snapshot := copyState(s.state)
	s.mu.Unlock()
	s.notify(snapshot)
}

// ApplyCoupon replaces the coupon code and discount as one atomic update.
// Validation against the backend happens before this call; the store
// performs none itself.
func (s *Store) ApplyCoupon(couponCode string, discount int64) error {
	if discount < 0 {
		return ErrInvalidInput
	}
	s.mu.Lock()
	s.state.CouponCode = couponCode
	s.state.Discount = discount
	snapshot := copyState(s.state)
	s.mu.Unlock()
	s.notify(snapshot)
	return nil
}

// Clear resets the state to its empty initial value.
func (s *Store) Clear() {
	s.mu.Lock()
	s.state = State{}
	snapshot := copyState(s.state)
	s.mu.Unlock()
	s.notify(snapshot)
}

// Subtotal returns the current subtotal computed from live state.
func (s *Store) Subtotal() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Subtotal()
}

// Len returns the number of lines currently in the cart.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.Items)
}
