package router_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	chatapp "campus_chat/internal/chat/app"
	"campus_chat/internal/chat/domain"
	chatrepo "campus_chat/internal/chat/repository"
	"campus_chat/internal/gateway/app"
	"campus_chat/internal/gateway/repository"
	"campus_chat/internal/gateway/router"
	"campus_chat/pkg/logger"
	"campus_chat/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetNewNop()
}

type gateway struct {
	baseURL string
	wsURL   string
	convs   *convStore
	objects *objectStore
}

func startGateway(t *testing.T) *gateway {
	t.Helper()

	g := &gateway{
		convs:   &convStore{convs: make(map[string]domain.Conversation)},
		objects: &objectStore{objects: make(map[string][]byte)},
	}
	items := itemStore{
		"I1": {ID: "I1", Title: "Desk lamp", Price: 12, Status: domain.ItemActive, Seller: &domain.Participant{ID: "S1", Email: "sam@campus.edu"}},
	}
	msgs := &messageStore{msgs: make(map[string][]domain.Message)}
	hub := repository.NewMemoryHub()

	convUC := app.NewConversationUseCase(g.convs, items)
	messageUC := app.NewMessageUseCase(convUC, g.convs, msgs, hub)
	attachUC := app.NewAttachmentUseCase(convUC, g.objects)

	f := fiber.New(fiber.Config{DisableStartupMessage: true, BodyLimit: 6 << 20})
	router.RegisterRoutes(f, app.NewChatHandler(convUC, messageUC, attachUC), app.NewChatWebsocketHandler(messageUC, hub, time.Minute))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = f.Listener(ln) }()
	t.Cleanup(func() { _ = f.ShutdownWithTimeout(time.Second) })

	g.baseURL = "http://" + ln.Addr().String()
	g.wsURL = "ws://" + ln.Addr().String() + "/ws"
	return g
}

// screen collects what a user would see
type screen struct {
	mu     sync.Mutex
	toasts []chatapp.Notification
	errors []string
}

func (s *screen) Notify(n chatapp.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toasts = append(s.toasts, n)
}

func (s *screen) ShowError(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, op+": "+err.Error())
}

func (s *screen) Toasts() []chatapp.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]chatapp.Notification(nil), s.toasts...)
}

func login(t *testing.T, g *gateway, memberID, email string) (*chatapp.Session, *screen) {
	t.Helper()
	tok, err := token.GenerateJWT(memberID, string(token.RoleStudent), "", email, "test")
	require.NoError(t, err)

	view := &screen{}
	s := chatapp.NewSession(
		chatrepo.NewHTTPStore(g.baseURL, tok, 5*time.Second),
		chatrepo.NewWebsocketDialer(g.wsURL, 5*time.Second, time.Minute),
		view,
	)
	require.NoError(t, s.Start(context.Background(), tok))
	t.Cleanup(s.Close)
	return s, view
}

func contents(msgs []domain.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}
	return out
}

// 測試第一則訊息建立對話, 對方收到通知, 之後附件走同一個對話
func TestChatGateway_FirstMessageToAttachment(t *testing.T) {
	g := startGateway(t)
	_, sellerView := login(t, g, "S1", "sam@campus.edu")
	buyer, buyerView := login(t, g, "U1", "una@campus.edu")

	res, err := buyer.OpenItem(context.Background(), "I1")
	require.NoError(t, err)
	assert.True(t, buyer.View().Ref.IsPending())

	require.NoError(t, buyer.SendText("is it available?"))

	require.Eventually(t, func() bool {
		v := buyer.View()
		return v.Ref.IsBound() && !v.Loading && len(v.Messages) == 1
	}, 5*time.Second, 20*time.Millisecond)
	convID := res.ConversationID()
	require.NotEmpty(t, convID)
	assert.Equal(t, []string{"is it available?"}, contents(buyer.View().Messages))

	require.Eventually(t, func() bool { return len(sellerView.Toasts()) == 1 }, 5*time.Second, 20*time.Millisecond)
	toast := sellerView.Toasts()[0]
	assert.Equal(t, convID, toast.ConversationID)
	assert.Equal(t, "New message from una@campus.edu", toast.Title)
	assert.Equal(t, "is it available?", toast.Preview)

	require.NoError(t, buyer.SendAttachment(context.Background(), domain.Upload{
		FileName: "lamp.png", MIMEType: "image/png", Data: []byte("png-bytes"),
	}))
	require.Eventually(t, func() bool { return len(buyer.View().Messages) == 2 }, 5*time.Second, 20*time.Millisecond)

	last := buyer.View().Messages[1]
	assert.Equal(t, domain.ImagePreview, last.Content)
	att, ok := last.Attachment()
	require.True(t, ok)
	assert.Contains(t, att.URL, "chats/"+convID+"/")
	assert.Equal(t, 1, g.objects.count())

	convs, err := buyer.Conversations(context.Background())
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, convID, convs[0].ID)
	assert.Equal(t, "Desk lamp", convs[0].Item.Title)
	assert.Equal(t, domain.ImagePreview, convs[0].Preview())

	assert.Empty(t, buyerView.Toasts())
}

// 測試同一個買家再開同一個商品會直接導向既有對話
func TestChatGateway_ReopenItemRedirects(t *testing.T) {
	g := startGateway(t)
	buyer, _ := login(t, g, "U1", "una@campus.edu")

	_, err := buyer.OpenItem(context.Background(), "I1")
	require.NoError(t, err)
	require.NoError(t, buyer.SendText("hello"))
	require.Eventually(t, func() bool { return buyer.View().Ref.IsBound() }, 5*time.Second, 20*time.Millisecond)
	first, _ := buyer.View().Ref.ConversationID()

	res, err := buyer.OpenItem(context.Background(), "I1")
	require.NoError(t, err)
	assert.True(t, res.Redirected())
	assert.Equal(t, first, res.ConversationID())
	assert.Equal(t, 1, g.convs.count())
}

// 測試賣家不能對自己的商品開對話
func TestChatGateway_OwnItem(t *testing.T) {
	g := startGateway(t)
	seller, _ := login(t, g, "S1", "sam@campus.edu")

	_, err := seller.OpenItem(context.Background(), "I1")
	assert.ErrorIs(t, err, domain.ErrOwnItem)
}

// 測試沒有 token 的請求被拒絕
func TestChatGateway_RequiresToken(t *testing.T) {
	g := startGateway(t)

	_, err := chatrepo.NewHTTPStore(g.baseURL, "garbage", time.Second).ListConversations(context.Background())
	var statusErr *chatrepo.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, fiber.StatusUnauthorized, statusErr.Code)

	_, err = chatrepo.NewWebsocketDialer(g.wsURL, time.Second, time.Minute).Dial(context.Background(), "garbage", func(domain.Frame) {})
	assert.Error(t, err)
}
