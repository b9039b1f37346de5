package order

type Status string

const (
	StatusPending        Status = "pending"
	StatusPickedUp       Status = "picked_up"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
)

// next holds the only legal forward step per status. Delivered is terminal.
var next = map[Status]Status{
	StatusPending:        StatusPickedUp,
	StatusPickedUp:       StatusOutForDelivery,
	StatusOutForDelivery: StatusDelivered,
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPickedUp, StatusOutForDelivery, StatusDelivered:
		return true
	}
	return false
}

// CanTransition reports whether to is the exact successor of from.
func CanTransition(from, to Status) bool {
	n, ok := next[from]
	return ok && n == to
}

// Predecessor returns the status an order must be in before moving to to.
func Predecessor(to Status) (Status, bool) {
	for from, n := range next {
		if n == to {
			return from, true
		}
	}
	return "", false
}
