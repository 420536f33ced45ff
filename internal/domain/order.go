package domain

import (
	"time"
)

type OrderStatus string

const (
	OrderStatusReceived                     OrderStatus = "received"
	OrderStatusPreparing                    OrderStatus = "preparing"
	OrderStatusShipping                     OrderStatus = "shipping"
	OrderStatusDelivered                    OrderStatus = "delivered"
	OrderStatusCancelled                    OrderStatus = "cancelled"
	OrderStatusRefundApproved               OrderStatus = "refund_approved"
	OrderStatusRefundReturnShipping         OrderStatus = "refund_return_shipping"
	OrderStatusRefundReturnShippingPending  OrderStatus = "refund_return_shipping_pending"
	OrderStatusRefundReturnShippingApproved OrderStatus = "refund_return_shipping_approved"
	OrderStatusRefundReturnReceived         OrderStatus = "refund_return_received"
	OrderStatusRefundProcessing             OrderStatus = "refund_processing"
	OrderStatusRefundCompleted              OrderStatus = "refund_completed"
)

// OrderStatuses lists every known order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusReceived,
	OrderStatusPreparing,
	OrderStatusShipping,
	OrderStatusDelivered,
	OrderStatusCancelled,
	OrderStatusRefundApproved,
	OrderStatusRefundReturnShipping,
	OrderStatusRefundReturnShippingPending,
	OrderStatusRefundReturnShippingApproved,
	OrderStatusRefundReturnReceived,
	OrderStatusRefundProcessing,
	OrderStatusRefundCompleted,
}

func (s OrderStatus) IsValid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

type RefundStatus string

const (
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusApproved RefundStatus = "approved"
	RefundStatusRejected RefundStatus = "rejected"
)

// SyncState tracks whether a locally cached order matches the remote store.
type SyncState string

const (
	SyncStateSynced  SyncState = "synced"
	SyncStatePending SyncState = "pending"
)

type RefundRequest struct {
	Status        RefundStatus `json:"status"`
	Reason        string       `json:"reason"`
	Images        []string     `json:"images"`
	RequestedAt   time.Time    `json:"requestedAt"`
	AdminResponse string       `json:"adminResponse,omitempty"`
	ProcessedAt   *time.Time   `json:"processedAt,omitempty"`
}

type AdminApproval struct {
	Approved      bool      `json:"approved"`
	AdminResponse string    `json:"adminResponse,omitempty"`
	ProcessedAt   time.Time `json:"processedAt"`
	AdminID       string    `json:"adminId,omitempty"`
}

type ReturnShippingInfo struct {
	TrackingNumber    string         `json:"trackingNumber"`
	ShippingCompany   string         `json:"shippingCompany"`
	ShippingImages    []string       `json:"shippingImages"`
	ShippingDate      time.Time      `json:"shippingDate"`
	EstimatedDelivery string         `json:"estimatedDelivery"`
	Notes             string         `json:"notes,omitempty"`
	PaymentProof      []string       `json:"paymentProof,omitempty"`
	AdminApproval     *AdminApproval `json:"adminApproval,omitempty"`
}

type Order struct {
	ID                 string              `json:"id"`
	OrderNumber        string              `json:"orderNumber"`
	UserID             string              `json:"userId"`
	Status             OrderStatus         `json:"status"`
	PaymentStatus      PaymentStatus       `json:"paymentStatus"`
	PaymentMethod      string              `json:"paymentMethod,omitempty"`
	Subtotal           float64             `json:"subtotal"`
	Tax                float64             `json:"tax"`
	Shipping           float64             `json:"shipping"`
	Discount           float64             `json:"discount"`
	Total              float64             `json:"total"`
	Currency           string              `json:"currency,omitempty"`
	ShippingAddressID  int64               `json:"shippingAddressId,omitempty"`
	BillingAddressID   int64               `json:"billingAddressId,omitempty"`
	Notes              string              `json:"notes,omitempty"`
	CancellationReason string              `json:"cancellationReason,omitempty"`
	RefundRequest      *RefundRequest      `json:"refundRequest,omitempty"`
	ReturnShippingInfo *ReturnShippingInfo `json:"returnShippingInfo,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`

	SyncState SyncState `json:"-"`
}

// Clone returns a deep copy so callers can't mutate cached records.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	if o.RefundRequest != nil {
		rr := *o.RefundRequest
		rr.Images = append([]string(nil), o.RefundRequest.Images...)
		if o.RefundRequest.ProcessedAt != nil {
			at := *o.RefundRequest.ProcessedAt
			rr.ProcessedAt = &at
		}
		c.RefundRequest = &rr
	}
	if o.ReturnShippingInfo != nil {
		rs := *o.ReturnShippingInfo
		rs.ShippingImages = append([]string(nil), o.ReturnShippingInfo.ShippingImages...)
		rs.PaymentProof = append([]string(nil), o.ReturnShippingInfo.PaymentProof...)
		if o.ReturnShippingInfo.AdminApproval != nil {
			aa := *o.ReturnShippingInfo.AdminApproval
			rs.AdminApproval = &aa
		}
		c.ReturnShippingInfo = &rs
	}
	return &c
}

// OrderPatch is a partial update. Nil fields are left untouched.
type OrderPatch struct {
	Status             *OrderStatus        `json:"status,omitempty"`
	PaymentStatus      *PaymentStatus      `json:"paymentStatus,omitempty"`
	CancellationReason *string             `json:"cancellationReason,omitempty"`
	RefundRequest      *RefundRequest      `json:"refundRequest,omitempty"`
	ReturnShippingInfo *ReturnShippingInfo `json:"returnShippingInfo,omitempty"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// Apply mutates o with every field set on the patch, including UpdatedAt.
func (p OrderPatch) Apply(o *Order) {
	if p.Status != nil {
		o.Status = *p.Status
	}
	if p.PaymentStatus != nil {
		o.PaymentStatus = *p.PaymentStatus
	}
	if p.CancellationReason != nil {
		o.CancellationReason = *p.CancellationReason
	}
	if p.RefundRequest != nil {
		rr := *p.RefundRequest
		o.RefundRequest = &rr
	}
	if p.ReturnShippingInfo != nil {
		rs := *p.ReturnShippingInfo
		o.ReturnShippingInfo = &rs
	}
	if !p.UpdatedAt.IsZero() {
		o.UpdatedAt = p.UpdatedAt
	}
}

// Merge folds a later patch into p; later fields win.
func (p OrderPatch) Merge(later OrderPatch) OrderPatch {
	if later.Status != nil {
		p.Status = later.Status
	}
	if later.PaymentStatus != nil {
		p.PaymentStatus = later.PaymentStatus
	}
	if later.CancellationReason != nil {
		p.CancellationReason = later.CancellationReason
	}
	if later.RefundRequest != nil {
		p.RefundRequest = later.RefundRequest
	}
	if later.ReturnShippingInfo != nil {
		p.ReturnShippingInfo = later.ReturnShippingInfo
	}
	if later.UpdatedAt.After(p.UpdatedAt) {
		p.UpdatedAt = later.UpdatedAt
	}
	return p
}

type OrderItem struct {
	ID               int64   `json:"id"`
	OrderID          string  `json:"orderId"`
	ProductVariantID int64   `json:"productVariantId"`
	ProductName      string  `json:"productName"`
	ProductSKU       string  `json:"productSku"`
	Size             string  `json:"size"`
	Color            string  `json:"color"`
	Quantity         int     `json:"quantity"`
	UnitPrice        float64 `json:"unitPrice"`
	TotalPrice       float64 `json:"totalPrice"`
}

type OrderItemWithProduct struct {
	OrderItem
	Product Product        `json:"product"`
	Variant ProductVariant `json:"variant"`
}

type OrderWithDetails struct {
	Order
	User  User                   `json:"user"`
	Items []OrderItemWithProduct `json:"items"`
}
