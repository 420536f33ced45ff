// Package notify delivers user-facing outcome messages of order operations.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one outcome message. Degraded is set when the operation
// only succeeded locally because the remote store was unreachable.
type Notification struct {
	ID       string    `json:"id"`
	Level    Level     `json:"level"`
	OrderID  string    `json:"orderId,omitempty"`
	Message  string    `json:"message"`
	Degraded bool      `json:"degraded,omitempty"`
	At       time.Time `json:"at"`
}

func New(level Level, orderID, message string) Notification {
	return Notification{
		ID:      uuid.NewString(),
		Level:   level,
		OrderID: orderID,
		Message: message,
		At:      time.Now().UTC(),
	}
}

func Success(orderID, message string) Notification {
	return New(LevelSuccess, orderID, message)
}

// Degraded is a success that was only applied locally.
func Degraded(orderID, message string) Notification {
	n := New(LevelSuccess, orderID, message)
	n.Degraded = true
	return n
}

func Warning(orderID, message string) Notification {
	return New(LevelWarning, orderID, message)
}

func Error(orderID, message string) Notification {
	return New(LevelError, orderID, message)
}

// Notifier must not block the caller for long and never fails it.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}

// DefaultRecorderLimit is the number of notifications a Recorder keeps when
// Limit is zero.
const DefaultRecorderLimit = 200

// Recorder keeps the most recent notifications in memory. Once Limit is
// reached the oldest notification is overwritten.
type Recorder struct {
	Limit int

	mu    sync.Mutex
	items []Notification
	// oldest is the index of the oldest item once the buffer is full.
	oldest int
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	limit := r.Limit
	if limit <= 0 {
		limit = DefaultRecorderLimit
	}
	if len(r.items) < limit {
		r.items = append(r.items, n)
		return
	}
	r.items[r.oldest] = n
	r.oldest = (r.oldest + 1) % len(r.items)
}

// All returns the kept notifications, oldest first.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, 0, len(r.items))
	out = append(out, r.items[r.oldest:]...)
	return append(out, r.items[:r.oldest]...)
}

// Last returns the most recent notification and false when none was recorded.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[(r.oldest+len(r.items)-1)%len(r.items)], true
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
	r.oldest = 0
}
