package queue

import (
	"context"
	"encoding/json"
	"strconv"

	rd "github.com/redis/go-redis/v9"
)

// Outbox 把销售事件追加到 Redis Stream，由 Relay 异步转发到 Kafka。
type Outbox struct {
	rdb    *rd.Client
	stream string
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

// Append 写入一条事件，返回 stream entry id。
func (o *Outbox) Append(ctx context.Context, msg SaleMessage) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		Values: map[string]any{
			"event_id": msg.EventID,
			"sale_id":  strconv.FormatUint(uint64(msg.SaleID), 10),
			"user_id":  strconv.FormatUint(uint64(msg.UserID), 10),
			"payload":  string(payload),
		},
	}).Result()
}
