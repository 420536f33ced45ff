// Package poller clears carts once their checkout has completed.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	Topic   = "checkout-outbox"
	GroupID = "storefront-cart-consumer"
)

var ErrMissingUserID = errors.New("missing or invalid user_id")

// CartClearer empties a user's cart, both stored and cached.
type CartClearer interface {
	ClearCart(ctx context.Context, userID string) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// checkoutCompleted is the outbox event published by checkout.
type checkoutCompleted struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}

type Poller struct {
	carts  CartClearer
	reader messageReader
	log    *zap.Logger
}

func NewPoller(carts CartClearer, log *zap.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{carts: carts, reader: reader, log: log}
}

// Run consumes until ctx is done. Malformed events are committed and
// skipped; a failed clear is retried on the next delivery.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.consume(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing reader", zap.Error(err))
	}
}

func (p *Poller) consume(ctx context.Context) {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("error reading message", zap.Error(err))
		}
		return
	}

	err = p.handle(ctx, m.Value)
	if err != nil && !errors.Is(err, ErrMissingUserID) && !isSyntaxError(err) {
		p.log.Error("failed to clear cart", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	if err != nil {
		p.log.Warn("skipping malformed checkout event", zap.Int64("offset", m.Offset), zap.Error(err))
	}

	if err := p.reader.CommitMessages(ctx, m); err != nil {
		p.log.Warn("error committing message", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

func (p *Poller) handle(ctx context.Context, value []byte) error {
	var event checkoutCompleted
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("parse checkout event: %w", err)
	}
	if event.UserID == "" {
		return ErrMissingUserID
	}

	if err := p.carts.ClearCart(ctx, event.UserID); err != nil {
		return fmt.Errorf("clear cart of %s: %w", event.UserID, err)
	}
	p.log.Info("cart cleared after checkout",
		zap.String("user_id", event.UserID),
		zap.String("checkout_id", event.CheckoutID))
	return nil
}

func isSyntaxError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
