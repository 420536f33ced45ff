package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review is a customer's rating of a product, optionally answered by the shop.
type Review struct {
	ID         int64      `json:"id"`
	ProductID  int64      `json:"productId"`
	UserID     int64      `json:"userId"`
	OrderID    string     `json:"orderId,omitempty"`
	Rating     int        `json:"rating"`
	Title      string     `json:"title,omitempty"`
	Content    string     `json:"content"`
	Size       string     `json:"size,omitempty"`
	Color      string     `json:"color,omitempty"`
	Images     []string   `json:"images,omitempty"`
	IsVerified bool       `json:"isVerified"`
	IsHelpful  int        `json:"isHelpful"`
	CreatedAt  time.Time  `json:"createdAt"`
	Reply      string     `json:"reply,omitempty"`
	ReplyDate  *time.Time `json:"replyDate,omitempty"`
}

// ReviewReply is the body of PATCH /reviews/{id}/reply.
type ReviewReply struct {
	Reply     string    `json:"reply"`
	ReplyDate time.Time `json:"replyDate"`
}
