package repository

import (
	"context"
	"encoding/json"

	"campus_chat/internal/chat/domain"
	"campus_chat/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RoomChannel fan-out channel of a conversation
func RoomChannel(conversationID string) string {
	return "chat:room:" + conversationID
}

// UserChannel fan-out channel of a member, every connection of the member listens
func UserChannel(memberID string) string {
	return "chat:user:" + memberID
}

// Broadcaster definition live frame fan-out between gateway nodes
type Broadcaster interface {
	Publish(ctx context.Context, channel string, frame domain.Frame) error
	// Subscribe returns once the subscription is active; handler runs until ctx is done
	Subscribe(ctx context.Context, channel string, handler func(frame domain.Frame)) error
}

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 將 frame 序列化後，發布到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, frame domain.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe 訂閱 channel，收到訊息後呼叫 handler 處理
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler func(frame domain.Frame)) error {
	sub := r.client.Subscribe(ctx, channel)
	// 等到訂閱確認, 避免之後 publish 的訊息漏接
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return err
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}

				var frame domain.Frame
				if err := json.Unmarshal([]byte(m.Payload), &frame); err != nil {
					logger.Log.Error("unmarshal pubsub frame", zap.String("channel", channel), zap.Error(err))
					continue
				}
				handler(frame)
			case <-ctx.Done():
				logger.Log.Debug("sub close", zap.String("channel", channel))
				return
			}
		}
	}()
	return nil
}
