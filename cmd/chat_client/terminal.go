package main

import (
	"fmt"
	"io"
	"sync"

	"campus_chat/internal/chat/app"
	"campus_chat/internal/chat/domain"
)

// terminal app.View on a plain text terminal
type terminal struct {
	mu      sync.Mutex
	w       io.Writer
	openID  string
	loading bool
	printed map[string]struct{}
}

func newTerminal(w io.Writer) *terminal {
	return &terminal{w: w, printed: make(map[string]struct{})}
}

func (t *terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.w, line)
}

// Notify toast for a conversation not on screen
func (t *terminal) Notify(n app.Notification) {
	t.println(fmt.Sprintf("🔔 %s: %s  (/open %s)", n.Title, n.Preview, n.ConversationID))
}

// ShowError transient error line
func (t *terminal) ShowError(op string, err error) {
	t.println(fmt.Sprintf("⚠️  %s failed: %v", op, err))
}

// render 印出新出現的訊息, 切換對話時重印
func (t *terminal) render(snap app.StreamSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if snap.ConversationID != t.openID {
		t.openID = snap.ConversationID
		t.printed = make(map[string]struct{})
		if snap.ConversationID != "" {
			fmt.Fprintf(t.w, "── chat %s ──\n", snap.ConversationID)
		}
	}
	if snap.Loading && !t.loading {
		fmt.Fprintln(t.w, "loading history...")
	}
	t.loading = snap.Loading

	for _, m := range snap.Messages {
		if _, ok := t.printed[m.ID]; ok {
			continue
		}
		t.printed[m.ID] = struct{}{}
		fmt.Fprintln(t.w, formatMessage(m))
	}
}

func formatMessage(m domain.Message) string {
	line := fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format("15:04"), m.Sender.DisplayName(), m.Content)
	if att, ok := m.Attachment(); ok {
		line += fmt.Sprintf(" %s (%s)", att.FileName, att.URL)
	}
	return line
}
