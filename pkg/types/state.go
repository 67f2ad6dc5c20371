package types

// DeliveryState is the position of a record in the delivery state machine.
type DeliveryState string

// Delivery state constants
const (
	DeliveryUnscheduled DeliveryState = "unscheduled" // No delivery date
	DeliveryPending     DeliveryState = "pending"     // Waiting for its delivery date
	DeliveryDelivered   DeliveryState = "delivered"   // Channel accepted the delivery (terminal)
	DeliveryFailed      DeliveryState = "failed"      // Channel rejected the delivery (terminal for the scheduler)
)

// ValidDeliveryStates contains all valid delivery state values
var ValidDeliveryStates = []DeliveryState{
	DeliveryUnscheduled,
	DeliveryPending,
	DeliveryDelivered,
	DeliveryFailed,
}

// IsValidDeliveryState checks if the given state is a valid delivery state.
func IsValidDeliveryState(state DeliveryState) bool {
	for _, s := range ValidDeliveryStates {
		if state == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the scheduler may never act on a record in this state.
func (s DeliveryState) IsTerminal() bool {
	return s == DeliveryDelivered || s == DeliveryFailed
}

// IsValidDeliveryTransition validates delivery state transitions.
//
// Valid transitions:
//
//	unscheduled -> pending
//	pending     -> delivered | failed
//	failed      -> pending   (explicit operator requeue only)
//	delivered   -> (terminal, no transitions out)
func IsValidDeliveryTransition(from, to DeliveryState) bool {
	switch from {
	case DeliveryUnscheduled:
		return to == DeliveryPending
	case DeliveryPending:
		return to == DeliveryDelivered || to == DeliveryFailed
	case DeliveryFailed:
		return to == DeliveryPending
	case DeliveryDelivered:
		return false
	default:
		return false
	}
}
