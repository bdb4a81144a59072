package domain

// State is the lifecycle state of an order.
type State string

const (
	StatePending           State = "PENDING"            // recorded, not yet validated
	StateValidated         State = "VALIDATED"          // passed business validation
	StatePaymentProcessing State = "PAYMENT_PROCESSING" // payment capture in flight
	StatePaid              State = "PAID"               // payment captured
	StateInventoryReserved State = "INVENTORY_RESERVED" // stock held for this order
	StateShipped           State = "SHIPPED"            // handed to carrier
	StateDelivered         State = "DELIVERED"          // received by customer
	StateCancelled         State = "CANCELLED"          // terminal
	StateRefunded          State = "REFUNDED"           // terminal
)

// Failure outcomes. These are recorded through Order.RecordFailure, not through
// the forward transition table: an order that hit one of them is done, and the
// table below deliberately knows nothing about them.
const (
	StateValidationFailed State = "VALIDATION_FAILED"
	StatePaymentFailed    State = "PAYMENT_FAILED"
	StateInventoryFailed  State = "INVENTORY_FAILED"
	StateShippingFailed   State = "SHIPPING_FAILED"
	StateProcessingFailed State = "PROCESSING_FAILED"
)

var displayNames = map[State]string{
	StatePending:           "Pending",
	StateValidated:         "Validated",
	StatePaymentProcessing: "Payment Processing",
	StatePaid:              "Paid",
	StateInventoryReserved: "Inventory Reserved",
	StateShipped:           "Shipped",
	StateDelivered:         "Delivered",
	StateCancelled:         "Cancelled",
	StateRefunded:          "Refunded",
	StateValidationFailed:  "Validation Failed",
	StatePaymentFailed:     "Payment Failed",
	StateInventoryFailed:   "Inventory Failed",
	StateShippingFailed:    "Shipping Failed",
	StateProcessingFailed:  "Processing Failed",
}

// sequence gives each lifecycle state a nominal forward-flow position. It is
// informational only; legality is decided by the transition table.
var sequence = map[State]int{
	StatePending:           1,
	StateValidated:         2,
	StatePaymentProcessing: 3,
	StatePaid:              4,
	StateInventoryReserved: 5,
	StateShipped:           6,
	StateDelivered:         7,
	StateCancelled:         8,
	StateRefunded:          9,
}

// DisplayName returns the human-readable label for the state.
func (s State) DisplayName() string {
	if name, ok := displayNames[s]; ok {
		return name
	}
	return string(s)
}

// Sequence returns the nominal forward-flow position of the state, or 0 for
// failure states which sit outside the forward flow.
func (s State) Sequence() int {
	return sequence[s]
}

// IsFailure reports whether the state records a processing failure outcome.
func (s State) IsFailure() bool {
	switch s {
	case StateValidationFailed, StatePaymentFailed, StateInventoryFailed,
		StateShippingFailed, StateProcessingFailed:
		return true
	}
	return false
}

// StateMachine holds the legal transition graph for the order lifecycle. The
// table is built once by NewStateMachine and never mutated afterwards; hand the
// value to whoever drives transitions instead of reaching for a global.
type StateMachine struct {
	transitions map[State][]State
}

// NewStateMachine builds the canonical lifecycle graph.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		transitions: map[State][]State{
			StatePending:           {StateValidated, StateCancelled},
			StateValidated:         {StatePaymentProcessing, StateCancelled},
			StatePaymentProcessing: {StatePaid, StateCancelled},
			StatePaid:              {StateInventoryReserved, StateCancelled, StateRefunded},
			StateInventoryReserved: {StateShipped, StateCancelled, StateRefunded},
			StateShipped:           {StateDelivered, StateCancelled, StateRefunded},
			StateDelivered:         {StateRefunded},
			StateCancelled:         {},
			StateRefunded:          {},
		},
	}
}

// CanTransitionTo reports whether current -> target is a declared transition.
// Pure and total: states outside the table simply have no outgoing edges.
func (m *StateMachine) CanTransitionTo(current, target State) bool {
	for _, next := range m.transitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// PossibleNextStates returns the states reachable from current in one
// transition. The returned slice is a copy.
func (m *StateMachine) PossibleNextStates(current State) []State {
	next := m.transitions[current]
	out := make([]State, len(next))
	copy(out, next)
	return out
}

// IsTerminal reports whether the state has no outgoing transitions.
func (m *StateMachine) IsTerminal(s State) bool {
	return len(m.transitions[s]) == 0
}

// Transition moves the order to target after checking legality. On success the
// order's state and UpdatedAt are mutated in place.
func (m *StateMachine) Transition(o *Order, target State) error {
	if !m.CanTransitionTo(o.State, target) {
		return &InvalidTransitionError{OrderID: o.ID, From: o.State, To: target}
	}
	o.setState(target)
	return nil
}
