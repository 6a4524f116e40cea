package app

import (
	"context"
	"errors"
	"sync"

	"campus_chat/internal/chat/domain"
	"campus_chat/internal/chat/repository"

	"github.com/stretchr/testify/mock"
)

// MockStore Mock repository.Store
type MockStore struct {
	mock.Mock

	tokenMu sync.Mutex
	token   string
}

// SetToken record the credential, not an expectation
func (m *MockStore) SetToken(token string) {
	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()
	m.token = token
}

// Token credential last set by SetToken
func (m *MockStore) Token() string {
	m.tokenMu.Lock()
	defer m.tokenMu.Unlock()
	return m.token
}

// ListConversations mock list conversations
func (m *MockStore) ListConversations(ctx context.Context) ([]domain.Conversation, error) {
	args := m.Called(ctx)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// ListMessages mock history
func (m *MockStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.Message), args.Error(1)
	}
	return nil, args.Error(1)
}

// CreateConversation mock create conversation
func (m *MockStore) CreateConversation(ctx context.Context, itemID string) (*domain.Conversation, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

// UploadAttachment mock upload
func (m *MockStore) UploadAttachment(ctx context.Context, conversationID string, file domain.Upload) (*domain.Attachment, error) {
	args := m.Called(ctx, conversationID, file)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Attachment), args.Error(1)
	}
	return nil, args.Error(1)
}

// GetItem mock get item
func (m *MockStore) GetItem(ctx context.Context, itemID string) (*domain.Item, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.Item), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockView Mock View
type MockView struct {
	mock.Mock
}

// Notify mock toast
func (m *MockView) Notify(n Notification) {
	m.Called(n)
}

// ShowError mock error toast
func (m *MockView) ShowError(op string, err error) {
	m.Called(op, err)
}

// emitted outbound frame recorded by fakeConn
type emitted struct {
	Event   domain.Action
	Payload interface{}
}

// fakeConn records emits, Push delivers inbound frames synchronously
type fakeConn struct {
	token   string
	handler repository.FrameHandler

	mu      sync.Mutex
	emits   []emitted
	done    chan struct{}
	once    sync.Once
	dropErr error
}

func newFakeConn(token string, handler repository.FrameHandler) *fakeConn {
	return &fakeConn{token: token, handler: handler, done: make(chan struct{})}
}

func (c *fakeConn) Emit(event domain.Action, payload interface{}) error {
	select {
	case <-c.done:
		return domain.ErrConnectionUnavailable
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emits = append(c.emits, emitted{Event: event, Payload: payload})
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) Done() <-chan struct{} {
	return c.done
}

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropErr
}

// Drop simulate the server going away
func (c *fakeConn) Drop(err error) {
	c.mu.Lock()
	c.dropErr = err
	c.mu.Unlock()
	c.Close()
}

// Push deliver an inbound event
func (c *fakeConn) Push(event domain.Action, payload interface{}) {
	frame, err := domain.NewFrame(event, payload)
	if err != nil {
		panic(err)
	}
	c.handler(frame)
}

// Emits recorded frames
func (c *fakeConn) Emits() []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]emitted(nil), c.emits...)
}

// EmitsOf recorded frames of one event
func (c *fakeConn) EmitsOf(event domain.Action) []emitted {
	var out []emitted
	for _, e := range c.Emits() {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

// fakeDialer hands out fakeConns, fail makes the next dials fail
type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	fail  error
}

func (d *fakeDialer) Dial(ctx context.Context, token string, handler repository.FrameHandler) (repository.LiveConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	if token == "" {
		return nil, errors.New("missing token")
	}
	c := newFakeConn(token, handler)
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = err
}

// Last most recent connection
func (d *fakeDialer) Last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

// Dials number of successful dials
func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// recordingNotifier collects notifications
type recordingNotifier struct {
	mu    sync.Mutex
	notes []Notification
}

func (n *recordingNotifier) Notify(note Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *recordingNotifier) All() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.notes...)
}

// blockingFetcher history fetch that waits for release, for switch races
type blockingFetcher struct {
	mu      sync.Mutex
	history map[string][]domain.Message
	gates   map[string]chan struct{}
	errs    map[string]error
	started chan string
}

func newBlockingFetcher() *blockingFetcher {
	return &blockingFetcher{
		history: make(map[string][]domain.Message),
		gates:   make(map[string]chan struct{}),
		errs:    make(map[string]error),
		started: make(chan string, 16),
	}
}

// Hold make fetches of conversationID wait until Release
func (f *blockingFetcher) Hold(conversationID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[conversationID] = make(chan struct{})
}

func (f *blockingFetcher) Release(conversationID string) {
	f.mu.Lock()
	gate := f.gates[conversationID]
	delete(f.gates, conversationID)
	f.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (f *blockingFetcher) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	f.mu.Lock()
	gate := f.gates[conversationID]
	f.mu.Unlock()

	select {
	case f.started <- conversationID:
	default:
	}
	if gate != nil {
		// ctx 取消也不提前返回, 模擬晚到的回應
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[conversationID]; err != nil {
		return nil, err
	}
	return append([]domain.Message(nil), f.history[conversationID]...), nil
}
