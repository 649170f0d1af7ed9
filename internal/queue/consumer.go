package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"store_manager/internal/model"

	"github.com/segmentio/kafka-go"
)

// AlertSink 持久化低库存告警，需要对重复写入幂等。
type AlertSink interface {
	SaveStockAlerts(ctx context.Context, alerts []model.StockAlert) error
}

// Consumer 消费销售事件并写低库存告警。处理成功（或确认为脏消息）后才提交 offset。
// 写库失败时原地退避重试同一条：提交后面的 offset 会让失败的这条永久丢失。
type Consumer struct {
	r    *kafka.Reader
	sink AlertSink

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewConsumer(brokers []string, topic, groupID string, sink AlertSink) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		sink:       sink,
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

func (c *Consumer) Run(ctx context.Context) {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			return // ctx cancel / 连接断开等
		}

		if err := c.handleWithRetry(ctx, m); err != nil {
			return // 只会是 ctx 结束，offset 未提交，重启后重新投递
		}
		if err := c.r.CommitMessages(ctx, m); err != nil {
			log.Printf("consumer commit offset=%d: %v", m.Offset, err)
		}
	}
}

// handleWithRetry 指数退避重试同一条消息，直到成功或 ctx 结束。
func (c *Consumer) handleWithRetry(ctx context.Context, m kafka.Message) error {
	backoff := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, m.Value)
		if err == nil {
			return nil
		}
		log.Printf("consumer handle offset=%d attempt=%d: %v", m.Offset, attempt, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// handle 返回 nil 表示消息可以提交（包括被丢弃的脏消息）。
func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var msg SaleMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		log.Printf("consumer unmarshal: %v", err)
		return nil
	}
	if err := msg.Validate(); err != nil {
		log.Printf("consumer drop invalid event %s: %v", msg.EventID, err)
		return nil
	}
	alerts := msg.LowStockAlerts()
	if len(alerts) == 0 {
		return nil
	}
	if err := c.sink.SaveStockAlerts(ctx, alerts); err != nil {
		return fmt.Errorf("save alerts for sale %d: %w", msg.SaleID, err)
	}
	return nil
}
