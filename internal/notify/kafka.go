package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const Topic = "order-notifications"

// messageWriter is the subset of *kafka.Writer used for publishing.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes notifications keyed by order id, so messages of
// one order stay ordered.
type KafkaNotifier struct {
	writer  messageWriter
	timeout time.Duration
	log     *zap.Logger
}

func NewKafkaNotifier(log *zap.Logger, brokers ...string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: w, timeout: 2 * time.Second, log: log}
}

func (k *KafkaNotifier) Notify(ctx context.Context, n Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		k.log.Error("marshal notification failed", zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(n.OrderID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "level", Value: []byte(n.Level)},
		},
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.Warn("publish notification failed",
			zap.String("notification_id", n.ID),
			zap.String("order_id", n.OrderID),
			zap.Error(err))
	}
}

func (k *KafkaNotifier) Close() error {
	return k.writer.Close()
}
