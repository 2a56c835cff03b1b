package common

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NotifyStream is the redis stream holding failed membership-cache
// notifications awaiting redelivery.
const NotifyStream = "member:notify:retry"

const notifyGroup = "notify-workers"

// NotifyQueueItem is one failed notification. Attempts counts deliveries
// already tried (the synchronous first attempt included).
type NotifyQueueItem struct {
	Email             string     `json:"email"`
	MembershipExpires *time.Time `json:"membership_expires,omitempty"`
	WaiverExpires     *time.Time `json:"waiver_expires,omitempty"`
	Attempts          int        `json:"attempts"`
}

// NotifyQueue provides the durable retry queue using redis streams.
type NotifyQueue struct {
	client *redis.Client
}

func NewNotifyQueue(client *redis.Client) *NotifyQueue {
	return &NotifyQueue{client: client}
}

// Enqueue appends a failed notification to the retry stream.
func (q *NotifyQueue) Enqueue(ctx context.Context, item *NotifyQueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: NotifyStream,
		Values: map[string]interface{}{"data": string(data)},
	}
	if _, err := q.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to add to stream: %w", err)
	}
	return nil
}

// CreateConsumerGroup ensures the worker consumer group exists. An already
// existing group is not an error.
func (q *NotifyQueue) CreateConsumerGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, NotifyStream, notifyGroup, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

// Read blocks for up to block waiting for one pending notification.
// Returns the message id and item, or ("", nil, nil) on timeout.
func (q *NotifyQueue) Read(ctx context.Context, consumer string, block time.Duration) (string, *NotifyQueueItem, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    notifyGroup,
		Consumer: consumer,
		Streams:  []string{NotifyStream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, err
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			raw, ok := msg.Values["data"].(string)
			if !ok {
				// Unreadable message; drop it so it can't wedge the queue
				q.Ack(ctx, msg.ID)
				continue
			}
			var item NotifyQueueItem
			if err := json.Unmarshal([]byte(raw), &item); err != nil {
				q.Ack(ctx, msg.ID)
				continue
			}
			return msg.ID, &item, nil
		}
	}
	return "", nil, nil
}

// Ack removes a delivered message from the pending list.
func (q *NotifyQueue) Ack(ctx context.Context, messageID string) error {
	return q.client.XAck(ctx, NotifyStream, notifyGroup, messageID).Err()
}
