package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"campus_chat/internal/chat/domain"
	"campus_chat/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetNewNop()
}

// 測試同一 token 重複呼叫只 dial 一次
func TestEnsureConnected_Idempotent(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewConnectionManager(dialer)

	first, err := m.EnsureConnected(context.Background(), "tok-a")
	require.NoError(t, err)
	second, err := m.EnsureConnected(context.Background(), "tok-a")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, dialer.Dials())
	state, _ := m.State()
	assert.Equal(t, ConnConnected, state)
}

// 測試換 token 會先關閉舊連線再重連
func TestEnsureConnected_TokenChangeRedials(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewConnectionManager(dialer)

	_, err := m.EnsureConnected(context.Background(), "tok-a")
	require.NoError(t, err)
	old := dialer.Last()

	_, err = m.EnsureConnected(context.Background(), "tok-b")
	require.NoError(t, err)

	assert.Equal(t, 2, dialer.Dials())
	assert.False(t, alive(old))
	assert.Equal(t, "tok-b", dialer.Last().token)
}

// 測試 dial 失敗回傳 ErrConnectionUnavailable
func TestEnsureConnected_DialFailure(t *testing.T) {
	dialer := &fakeDialer{}
	dialer.setFail(errors.New("connection refused"))
	m := NewConnectionManager(dialer)

	conn, err := m.EnsureConnected(context.Background(), "tok-a")

	assert.Nil(t, conn)
	assert.ErrorIs(t, err, domain.ErrConnectionUnavailable)
	state, reason := m.State()
	assert.Equal(t, ConnUnavailable, state)
	assert.ErrorIs(t, reason, domain.ErrConnectionUnavailable)
	assert.ErrorIs(t, m.Emit(domain.JoinChat, domain.JoinChatPayload{ChatID: "c1"}), domain.ErrConnectionUnavailable)
}

// 測試連線中斷轉為 Unavailable 並呼叫 OnDrop
func TestConnectionManager_Drop(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewConnectionManager(dialer)

	var dropped atomic.Int32
	m.OnDrop(func(err error) {
		assert.ErrorIs(t, err, domain.ErrConnectionUnavailable)
		dropped.Add(1)
	})

	_, err := m.EnsureConnected(context.Background(), "tok-a")
	require.NoError(t, err)
	dialer.Last().Drop(errors.New("server gone"))

	assert.Eventually(t, func() bool {
		state, _ := m.State()
		return state == ConnUnavailable && dropped.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, m.Connected())

	// 同一 token 可以重新連線
	_, err = m.EnsureConnected(context.Background(), "tok-a")
	require.NoError(t, err)
	assert.Equal(t, 2, dialer.Dials())
}

// 測試 Teardown 不算斷線
func TestConnectionManager_Teardown(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewConnectionManager(dialer)

	var dropped atomic.Int32
	m.OnDrop(func(error) { dropped.Add(1) })

	_, err := m.EnsureConnected(context.Background(), "tok-a")
	require.NoError(t, err)
	conn := dialer.Last()

	m.Teardown()

	assert.False(t, alive(conn))
	state, reason := m.State()
	assert.Equal(t, ConnDisconnected, state)
	assert.NoError(t, reason)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), dropped.Load())
}

// 測試 handler 在重連後依然有效
func TestConnectionManager_HandlersSurviveReconnect(t *testing.T) {
	dialer := &fakeDialer{}
	m := NewConnectionManager(dialer)

	var got []string
	m.On(domain.ReceiveMessage, func(frame domain.Frame) {
		var msg domain.Message
		require.NoError(t, frame.Decode(&msg))
		got = append(got, msg.ID)
	})

	var connects int
	m.OnConnect(func() { connects++ })

	_, err := m.EnsureConnected(context.Background(), "tok-a")
	require.NoError(t, err)
	dialer.Last().Push(domain.ReceiveMessage, domain.Message{ID: "m1", ConversationID: "c1"})

	_, err = m.EnsureConnected(context.Background(), "tok-b")
	require.NoError(t, err)
	dialer.Last().Push(domain.ReceiveMessage, domain.Message{ID: "m2", ConversationID: "c1"})
	dialer.Last().Push(domain.ChatCreated, domain.ChatCreatedPayload{ChatID: "c2", ItemID: "i2"})

	assert.Equal(t, []string{"m1", "m2"}, got)
	assert.Equal(t, 2, connects)
}
