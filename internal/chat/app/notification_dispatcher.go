package app

import (
	"strings"
	"sync/atomic"

	"campus_chat/internal/chat/domain"
)

const (
	previewRunes   = 60
	defaultPreview = "You have a new message"
)

// Notification toast for a message outside the open conversation
type Notification struct {
	ConversationID string
	MessageID      string
	Sender         domain.Participant
	Title          string
	Preview        string
}

// Notifier shows transient notifications
type Notifier interface {
	Notify(n Notification)
}

// ViewFunc conversation id currently in view, empty when none
type ViewFunc func() string

// NotificationDispatcher notifies about live messages the user is not looking at.
// It never touches the message stream.
type NotificationDispatcher struct {
	notifier Notifier
	view     ViewFunc
	active   atomic.Bool
}

// NewNotificationDispatcher create an active dispatcher
func NewNotificationDispatcher(notifier Notifier, view ViewFunc) *NotificationDispatcher {
	d := &NotificationDispatcher{notifier: notifier, view: view}
	d.active.Store(true)
	return d
}

// SetActive turn notifications on/off
func (d *NotificationDispatcher) SetActive(active bool) {
	d.active.Store(active)
}

// Dispatch notify when msg is not for the conversation in view, true when notified
func (d *NotificationDispatcher) Dispatch(msg domain.Message) bool {
	if !d.active.Load() || d.notifier == nil {
		return false
	}
	if d.view != nil && msg.ConversationID == d.view() {
		return false
	}

	d.notifier.Notify(Notification{
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		Sender:         msg.Sender,
		Title:          "New message from " + msg.Sender.DisplayName(),
		Preview:        Preview(msg.Content),
	})
	return true
}

// Preview first 60 characters of content, default text when blank
func Preview(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return defaultPreview
	}
	runes := []rune(content)
	if len(runes) > previewRunes {
		return string(runes[:previewRunes])
	}
	return content
}
