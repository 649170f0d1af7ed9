package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// Publisher 把销售事件投递到下游（Kafka）。
type Publisher interface {
	Publish(ctx context.Context, msg SaleMessage) error
}

// DefaultMaxAttempts 单条事件发布失败多少次后转入死信流。
const DefaultMaxAttempts = 5

// Relay 将 outbox Stream 中的销售事件转发到 Kafka。
// 发布成功才 ACK；失败的条目留在 pending 中重试，累计 maxAttempts 次后连同原因转存到死信流。
// 无法解析的条目直接进死信流。
type Relay struct {
	rdb *rd.Client
	pub Publisher

	stream     string
	deadStream string
	group      string
	consumer   string

	maxAttempts int
	attempts    map[string]int // entry id -> 已失败次数，只在本进程内累计
}

func NewRelay(rdb *rd.Client, pub Publisher, stream, group, consumer string) *Relay {
	return &Relay{
		rdb:         rdb,
		pub:         pub,
		stream:      stream,
		deadStream:  DeadLetterStream(stream),
		group:       group,
		consumer:    consumer,
		maxAttempts: DefaultMaxAttempts,
		attempts:    make(map[string]int),
	}
}

// DeadLetterStream 死信流的键名。
func DeadLetterStream(stream string) string { return stream + ":dead" }

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		log.Printf("relay ensure group: %v", err)
		return
	}

	for ctx.Err() == nil {
		msgs, err := r.next(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			log.Printf("relay read: %v", err)
			r.pause(ctx, 300*time.Millisecond)
			continue
		}

		for _, xm := range msgs {
			if !r.handle(ctx, xm) {
				// 保持顺序：当前条目没处理完就不往后走
				r.pause(ctx, 200*time.Millisecond)
				break
			}
		}
	}
}

// next 优先返回本消费者的 pending 条目（上次失败或崩溃遗留），没有再阻塞读新条目。
func (r *Relay) next(ctx context.Context) ([]rd.XMessage, error) {
	msgs, err := r.readGroup(ctx, "0", 0)
	if err != nil || len(msgs) > 0 {
		return msgs, err
	}
	return r.readGroup(ctx, ">", 2*time.Second)
}

func (r *Relay) pause(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

// readGroup block <= 0 时不阻塞。
func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	if block <= 0 {
		block = -1
	}
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var out []rd.XMessage
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

// handle 返回 false 表示该条目需要稍后重试。
func (r *Relay) handle(ctx context.Context, xm rd.XMessage) bool {
	msg, err := parseSaleEvent(xm.Values)
	if err != nil {
		log.Printf("relay malformed entry id=%s: %v", xm.ID, err)
		return r.deadLetter(ctx, xm, "malformed: "+err.Error()) == nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = r.pub.Publish(pubCtx, msg)
	cancel()
	if err != nil {
		r.attempts[xm.ID]++
		n := r.attempts[xm.ID]
		log.Printf("relay publish id=%s event=%s attempt %d/%d: %v", xm.ID, msg.EventID, n, r.maxAttempts, err)
		if n < r.maxAttempts {
			return false
		}
		return r.deadLetter(ctx, xm, "publish: "+err.Error()) == nil
	}

	if err := r.ackAndDelete(ctx, xm.ID); err != nil {
		// 已发布但未 ACK：下次会重复发布，消费者按 (sale_id, product_id) 去重
		log.Printf("relay ack id=%s: %v", xm.ID, err)
		return false
	}
	delete(r.attempts, xm.ID)
	return true
}

// deadLetter 原样转存条目并附带原因，同一事务内 ACK + 删除原条目。
func (r *Relay) deadLetter(ctx context.Context, xm rd.XMessage, reason string) error {
	values := make(map[string]any, len(xm.Values)+3)
	for k, v := range xm.Values {
		values[k] = v
	}
	values["dead_reason"] = reason
	values["source_id"] = xm.ID
	values["attempts"] = r.attempts[xm.ID]

	pipe := r.rdb.TxPipeline()
	pipe.XAdd(ctx, &rd.XAddArgs{Stream: r.deadStream, Values: values})
	pipe.XAck(ctx, r.stream, r.group, xm.ID)
	pipe.XDel(ctx, r.stream, xm.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("relay dead-letter id=%s: %v", xm.ID, err)
		return err
	}
	delete(r.attempts, xm.ID)
	return nil
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

// parseSaleEvent 从 stream entry 还原事件；外层字段与 payload 必须一致。
func parseSaleEvent(values map[string]interface{}) (SaleMessage, error) {
	eventID, err := getStreamString(values, "event_id")
	if err != nil {
		return SaleMessage{}, err
	}
	saleStr, err := getStreamString(values, "sale_id")
	if err != nil {
		return SaleMessage{}, err
	}
	userStr, err := getStreamString(values, "user_id")
	if err != nil {
		return SaleMessage{}, err
	}
	payload, err := getStreamString(values, "payload")
	if err != nil {
		return SaleMessage{}, err
	}

	saleID, err := strconv.ParseUint(saleStr, 10, 64)
	if err != nil {
		return SaleMessage{}, fmt.Errorf("invalid sale_id %q", saleStr)
	}
	userID, err := strconv.ParseUint(userStr, 10, 64)
	if err != nil {
		return SaleMessage{}, fmt.Errorf("invalid user_id %q", userStr)
	}

	var msg SaleMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return SaleMessage{}, fmt.Errorf("invalid payload: %w", err)
	}
	if msg.EventID != eventID || uint64(msg.SaleID) != saleID || uint64(msg.UserID) != userID {
		return SaleMessage{}, fmt.Errorf("payload does not match envelope for event %s", eventID)
	}
	if err := msg.Validate(); err != nil {
		return SaleMessage{}, err
	}
	return msg, nil
}

func getStreamString(values map[string]interface{}, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatInt(int64(x), 10), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
