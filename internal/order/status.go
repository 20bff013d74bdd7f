package order

// Order lifecycle states. Transitions only move forward through the
// ladder, cancellation is allowed from any state before delivery.
const (
	StatusNew            = "NEW"
	StatusConfirmed      = "CONFIRMED"
	StatusPreparing      = "PREPARING"
	StatusReady          = "READY"
	StatusOutForDelivery = "OUT_FOR_DELIVERY"
	StatusDelivered      = "DELIVERED"
	StatusCanceled       = "CANCELED"
)

var statusRank = map[string]int{
	StatusNew:            0,
	StatusConfirmed:      1,
	StatusPreparing:      2,
	StatusReady:          3,
	StatusOutForDelivery: 4,
	StatusDelivered:      5,
}

// ValidStatus reports whether s names a known lifecycle state.
func ValidStatus(s string) bool {
	if s == StatusCanceled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether an order may move from one state to the
// next. Skipping intermediate states forward is allowed, moving backwards
// is not, and terminal states never change.
func CanTransition(from, to string) bool {
	if from == StatusDelivered || from == StatusCanceled {
		return false
	}
	if to == StatusCanceled {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}
