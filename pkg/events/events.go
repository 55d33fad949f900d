package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/arunvijo/SmartOPDAgent/config"
)

// 事件类型
const (
	TypeDoctorApproved = "doctor.approved"
	TypeDoctorRejected = "doctor.rejected"
	TypeSlotBooked     = "slot.booked"
)

// Event 领域事件
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Key        string            `json:"key"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data"`
}

// New 构造事件
func New(eventType, key string, data map[string]string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// Publisher 领域事件发布接口
// 发布失败只记录日志，不影响业务请求
type Publisher interface {
	Publish(ctx context.Context, e Event)
	Close() error
}

// NewPublisher 根据配置创建发布器；未配置 brokers 时返回空实现
func NewPublisher(cfg *config.EventsConfig, logger *zap.Logger) Publisher {
	if !cfg.Enabled() {
		return Nop{}
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	logger.Info("事件发布已启用", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return NewKafkaPublisher(w, logger)
}

// messageWriter kafka.Writer 的最小接口，便于测试替换
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 基于 kafka-go 的发布器
type KafkaPublisher struct {
	w      messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher 包装 writer
func NewKafkaPublisher(w messageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{w: w, logger: logger}
}

// Publish 同步写入一条事件
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) {
	msg, err := encode(e)
	if err != nil {
		p.logger.Error("事件序列化失败", zap.String("type", e.Type), zap.Error(err))
		return
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("事件发布失败",
			zap.String("type", e.Type),
			zap.String("key", e.Key),
			zap.Error(err),
		)
	}
}

// Close 关闭底层 writer
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

func encode(e Event) (kafka.Message, error) {
	body, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("序列化事件失败: %w", err)
	}
	return kafka.Message{
		Key:   []byte(e.Key),
		Value: body,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}

// Nop 不投递任何事件
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
func (Nop) Close() error                   { return nil }
