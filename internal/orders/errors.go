package orders

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrNoRefundRequest      = errors.New("order has no refund request")
	ErrNoReturnShippingInfo = errors.New("order has no return shipping info")
	ErrInvalidStatus        = errors.New("unknown order status")
	ErrInvalidPaymentStatus = errors.New("unknown payment status")
	ErrInvalidDecision      = errors.New("refund decision must be approve or reject")
)
