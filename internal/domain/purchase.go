package domain

// PurchaseStatus is the lifecycle state of a Purchase.
//
//	pending ──approve──▶ approved (terminal)
//	   └─────decline──▶ declined (terminal)
type PurchaseStatus string

// Purchase statuses.
const (
	PurchasePending  PurchaseStatus = "pending"
	PurchaseApproved PurchaseStatus = "approved"
	PurchaseDeclined PurchaseStatus = "declined"
)

// Decision is an admin verdict on a pending purchase.
type Decision string

// Admin decisions.
const (
	DecisionApprove Decision = "approve"
	DecisionDecline Decision = "decline"
)

// Valid reports whether s is a known status.
func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchasePending, PurchaseApproved, PurchaseDeclined:
		return true
	}
	return false
}

// Terminal reports whether no further transition is permitted from s.
func (s PurchaseStatus) Terminal() bool {
	return s == PurchaseApproved || s == PurchaseDeclined
}

// Active reports whether s blocks a new purchase for the same user and file.
func (s PurchaseStatus) Active() bool {
	return s == PurchasePending || s == PurchaseApproved
}

// CanTransition reports whether from → to is an edge of the state machine.
func CanTransition(from, to PurchaseStatus) bool {
	return from == PurchasePending && to.Terminal()
}

// Target maps a decision to the status it produces. ok is false for unknown
// decisions.
func (d Decision) Target() (PurchaseStatus, bool) {
	switch d {
	case DecisionApprove:
		return PurchaseApproved, true
	case DecisionDecline:
		return PurchaseDeclined, true
	}
	return "", false
}
