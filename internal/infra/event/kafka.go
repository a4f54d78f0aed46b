package event

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"shopflow/internal/event"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaPublisher struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
		Logger:   zap.NewStdLog(logger.With(zap.String("kafka_component", "producer"))),
	}

	logger.Info("kafka publisher initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return &KafkaPublisher{writer: writer, topic: topic, logger: logger}
}

func (p *KafkaPublisher) PublishOrderStatus(ctx context.Context, evt event.OrderStatusEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal order status event: %w", err)
	}

	// 同じ注文は同じパーティションに寄せる
	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(evt.OrderID, 10)),
		Value: payload,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish order status event",
			zap.Int64("order_id", evt.OrderID),
			zap.Error(err))
		return fmt.Errorf("publish order status event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka writer: %w", err)
	}
	return nil
}
