package repository

import (
	"context"
	"testing"
	"time"

	"campus_chat/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannels(t *testing.T) {
	assert.Equal(t, "chat:room:C9", RoomChannel("C9"))
	assert.Equal(t, "chat:user:U1", UserChannel("U1"))
}

// 測試同一 channel 依 publish 順序送達, 其他 channel 收不到
func TestMemoryHub_PublishOrder(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []domain.Action
	require.NoError(t, hub.Subscribe(ctx, UserChannel("U1"), func(f domain.Frame) {
		got = append(got, f.Event)
	}))
	var other int
	require.NoError(t, hub.Subscribe(ctx, UserChannel("S1"), func(domain.Frame) { other++ }))

	created, err := domain.NewFrame(domain.ChatCreated, domain.ChatCreatedPayload{ChatID: "C9", ItemID: "I1"})
	require.NoError(t, err)
	received, err := domain.NewFrame(domain.ReceiveMessage, domain.Message{ID: "M1", ConversationID: "C9"})
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, UserChannel("U1"), created))
	require.NoError(t, hub.Publish(ctx, UserChannel("U1"), received))

	assert.Equal(t, []domain.Action{domain.ChatCreated, domain.ReceiveMessage}, got)
	assert.Zero(t, other)
}

func TestMemoryHub_UnsubscribeOnCancel(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, hub.Subscribe(ctx, RoomChannel("C9"), func(domain.Frame) {}))
	assert.Equal(t, 1, hub.Subscribers(RoomChannel("C9")))

	cancel()
	assert.Eventually(t, func() bool {
		return hub.Subscribers(RoomChannel("C9")) == 0
	}, time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, hub.Subscribe(ctx, RoomChannel("C9"), func(domain.Frame) {}), context.Canceled)
}
