package orders

import (
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
)

// Action is an admin or user operation that moves an order between states.
type Action string

const (
	ActionStartPreparing        Action = "start_preparing"
	ActionShip                  Action = "ship"
	ActionDeliver               Action = "deliver"
	ActionCancel                Action = "cancel"
	ActionRequestRefund         Action = "request_refund"
	ActionApproveRefund         Action = "approve_refund"
	ActionRejectRefund          Action = "reject_refund"
	ActionStartReturnShipping   Action = "start_return_shipping"
	ActionSubmitReturnShipping  Action = "submit_return_shipping"
	ActionApproveReturnShipping Action = "approve_return_shipping"
	ActionConfirmReturnReceived Action = "confirm_return_received"
	ActionProcessRefundPayment  Action = "process_refund_payment"
	ActionCompleteRefund        Action = "complete_refund"
)

type Transition struct {
	From   domain.OrderStatus
	Action Action
	To     domain.OrderStatus
}

// Transitions is the complete order state machine. Anything not listed is
// rejected, except re-applying an action whose target is the current state.
var Transitions = []Transition{
	{domain.OrderStatusReceived, ActionStartPreparing, domain.OrderStatusPreparing},
	{domain.OrderStatusPreparing, ActionShip, domain.OrderStatusShipping},
	{domain.OrderStatusShipping, ActionDeliver, domain.OrderStatusDelivered},

	{domain.OrderStatusReceived, ActionCancel, domain.OrderStatusCancelled},
	{domain.OrderStatusPreparing, ActionCancel, domain.OrderStatusCancelled},

	// The refund request is a sub-record; the order stays delivered until approval.
	{domain.OrderStatusDelivered, ActionRequestRefund, domain.OrderStatusDelivered},
	{domain.OrderStatusDelivered, ActionRejectRefund, domain.OrderStatusDelivered},
	{domain.OrderStatusDelivered, ActionApproveRefund, domain.OrderStatusRefundApproved},

	{domain.OrderStatusRefundApproved, ActionStartReturnShipping, domain.OrderStatusRefundReturnShipping},
	{domain.OrderStatusRefundApproved, ActionSubmitReturnShipping, domain.OrderStatusRefundReturnShippingPending},
	{domain.OrderStatusRefundReturnShipping, ActionSubmitReturnShipping, domain.OrderStatusRefundReturnShippingPending},
	{domain.OrderStatusRefundReturnShippingPending, ActionApproveReturnShipping, domain.OrderStatusRefundReturnShippingApproved},
	{domain.OrderStatusRefundReturnShippingApproved, ActionConfirmReturnReceived, domain.OrderStatusRefundReturnReceived},
	{domain.OrderStatusRefundReturnReceived, ActionProcessRefundPayment, domain.OrderStatusRefundProcessing},
	{domain.OrderStatusRefundProcessing, ActionCompleteRefund, domain.OrderStatusRefundCompleted},
}

// TransitionError is returned for a transition missing from Transitions.
type TransitionError struct {
	From   domain.OrderStatus
	To     domain.OrderStatus
	Action Action
}

func (e *TransitionError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("action %s not allowed for order in status %s", e.Action, e.From)
	}
	return fmt.Sprintf("invalid order transition from %s to %s", e.From, e.To)
}

// Next returns the state reached by applying action in state from.
func Next(from domain.OrderStatus, action Action) (domain.OrderStatus, error) {
	for _, t := range Transitions {
		if t.From == from && t.Action == action {
			return t.To, nil
		}
	}
	for _, t := range Transitions {
		if t.Action == action && t.To == from {
			return from, nil
		}
	}
	return "", &TransitionError{From: from, Action: action}
}

// CanTransitionTo reports whether to is reachable from from in one step.
// Staying in the same state is always allowed.
func CanTransitionTo(from, to domain.OrderStatus) bool {
	if from == to {
		return true
	}
	for _, t := range Transitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}

// IsFulfillmentStatus reports whether status lies on the forward path or is
// cancelled. These are the only targets of a plain status update.
func IsFulfillmentStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusReceived, domain.OrderStatusPreparing, domain.OrderStatusShipping,
		domain.OrderStatusDelivered, domain.OrderStatusCancelled:
		return true
	}
	return false
}

// Allowed lists the actions that move an order in state from.
func Allowed(from domain.OrderStatus) []Action {
	var actions []Action
	for _, t := range Transitions {
		if t.From == from {
			actions = append(actions, t.Action)
		}
	}
	return actions
}
