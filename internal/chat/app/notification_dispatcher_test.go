package app

import (
	"strings"
	"testing"

	"campus_chat/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 測試正在看的對話不通知, 其他對話通知
func TestDispatch_SuppressesOpenConversation(t *testing.T) {
	notifier := &recordingNotifier{}
	viewing := "c1"
	d := NewNotificationDispatcher(notifier, func() string { return viewing })

	assert.False(t, d.Dispatch(msg("m1", "c1", "hello")))

	other := msg("m2", "c2", "are you there?")
	other.Sender = domain.Participant{ID: "u2", Name: "Bob", Email: "bob@campus.edu"}
	assert.True(t, d.Dispatch(other))

	notes := notifier.All()
	require.Len(t, notes, 1)
	assert.Equal(t, "c2", notes[0].ConversationID)
	assert.Equal(t, "m2", notes[0].MessageID)
	assert.Equal(t, "New message from bob@campus.edu", notes[0].Title)
	assert.Equal(t, "are you there?", notes[0].Preview)
}

// 測試沒有開啟對話時全部通知
func TestDispatch_NothingOpen(t *testing.T) {
	notifier := &recordingNotifier{}
	d := NewNotificationDispatcher(notifier, func() string { return "" })

	assert.True(t, d.Dispatch(msg("m1", "c1", "hello")))
	assert.Len(t, notifier.All(), 1)
}

// 測試停用後不通知
func TestDispatch_Inactive(t *testing.T) {
	notifier := &recordingNotifier{}
	d := NewNotificationDispatcher(notifier, nil)
	d.SetActive(false)

	assert.False(t, d.Dispatch(msg("m1", "c1", "hello")))
	assert.Empty(t, notifier.All())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "You have a new message", Preview("   "))
	assert.Equal(t, "short", Preview("short"))

	long := strings.Repeat("é", 80)
	assert.Equal(t, strings.Repeat("é", 60), Preview(long))
}

func TestDisplayNameFallback(t *testing.T) {
	assert.Equal(t, "a@b.c", domain.Participant{Name: "A", Email: "a@b.c"}.DisplayName())
	assert.Equal(t, "A", domain.Participant{Name: "A"}.DisplayName())
	assert.Equal(t, "Someone", domain.Participant{}.DisplayName())
}
