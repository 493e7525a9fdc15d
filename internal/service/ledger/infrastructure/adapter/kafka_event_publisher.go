// internal/service/ledger/infrastructure/adapter/kafka_event_publisher.go
package adapter

import (
	"context"
	"encoding/json"

	"associate-ledger/internal/pkg/mq"
	"associate-ledger/internal/service/ledger/domain"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// ledgerEventMessage 是写入 Kafka 的消息体
type ledgerEventMessage struct {
	EventID string `json:"eventId"`
	domain.Event
}

// KafkaEventPublisher 实现了 port.EventPublisher 接口。
// 消息以会员账户为 key，同一会员的事件落在同一分区。
type KafkaEventPublisher struct {
	writer mq.MessageWriter
}

// NewKafkaEventPublisher 创建一个新的事件发布适配器
func NewKafkaEventPublisher(writer mq.MessageWriter) *KafkaEventPublisher {
	return &KafkaEventPublisher{writer: writer}
}

// Publish 把一次提交产生的全部事件作为一批消息发送
func (a *KafkaEventPublisher) Publish(ctx context.Context, events []domain.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		body, err := json.Marshal(ledgerEventMessage{EventID: uuid.NewString(), Event: e})
		if err != nil {
			return errors.Wrapf(err, "marshal %s event", e.Type)
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(e.Associate),
			Value:   body,
			Headers: []kafka.Header{{Key: "event-type", Value: []byte(e.Type)}},
		})
	}
	return mq.ProduceMessages(ctx, a.writer, msgs...)
}

// Close 关闭底层的 Kafka writer
func (a *KafkaEventPublisher) Close() error {
	if c, ok := a.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
