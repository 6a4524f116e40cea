package app

import (
	"context"
	"fmt"
	"sync"

	"campus_chat/internal/chat/domain"
	"campus_chat/pkg/logger"

	"go.uber.org/zap"
)

// ResolveState state of one navigation
type ResolveState int

const (
	// StateResolving looking up an existing conversation
	StateResolving ResolveState = iota
	// StateRedirecting existing conversation found, navigation swaps to it
	StateRedirecting
	// StatePending no conversation yet, item known
	StatePending
	// StateBound durable conversation id known, terminal
	StateBound
)

func (s ResolveState) String() string {
	switch s {
	case StateRedirecting:
		return "redirecting"
	case StatePending:
		return "pending"
	case StateBound:
		return "bound"
	default:
		return "resolving"
	}
}

// ResolverStore store calls the resolver needs
type ResolverStore interface {
	ListConversations(ctx context.Context) ([]domain.Conversation, error)
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
}

// ConversationResolver turns an item navigation into a conversation reference
type ConversationResolver struct {
	store  ResolverStore
	userID string
}

// NewConversationResolver create ConversationResolver for the current user
func NewConversationResolver(store ResolverStore, userID string) *ConversationResolver {
	return &ConversationResolver{store: store, userID: userID}
}

// Resolve find the user's conversation about itemID. Found: the result is
// bound (redirected). Not found: the result is pending on the item.
func (r *ConversationResolver) Resolve(ctx context.Context, itemID string) (*Resolution, error) {
	res := newResolution(itemID)

	convs, err := r.store.ListConversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	for i := range convs {
		conv := convs[i]
		if conv.ItemRef() != itemID || conv.ID == "" {
			continue
		}
		if r.userID != "" && len(conv.Participants) > 0 && !conv.HasParticipant(r.userID) {
			continue
		}
		res.redirect(&conv)
		logger.Log.Debug("redirect item to conversation", zap.String("item_id", itemID), zap.String("chat_id", conv.ID))
		return res, nil
	}

	item, err := r.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if r.userID != "" && item.SellerID() == r.userID {
		return nil, domain.ErrOwnItem
	}
	res.pend(item)
	return res, nil
}

// ResolveConversation navigation straight to a known conversation
func (r *ConversationResolver) ResolveConversation(conversationID string) *Resolution {
	res := newResolution("")
	res.state = StateBound
	res.conversationID = conversationID
	close(res.bound)
	return res
}

// Resolution one navigation. Bound is terminal; a later navigation gets a
// new Resolution.
type Resolution struct {
	mu             sync.Mutex
	itemID         string
	state          ResolveState
	conversationID string
	conversation   *domain.Conversation
	item           *domain.Item
	redirected     bool
	bound          chan struct{}
	onBound        []func(conversationID string)
}

func newResolution(itemID string) *Resolution {
	return &Resolution{
		itemID: itemID,
		state:  StateResolving,
		bound:  make(chan struct{}),
	}
}

func (r *Resolution) redirect(conv *domain.Conversation) {
	r.mu.Lock()
	r.state = StateRedirecting
	r.redirected = true
	r.conversation = conv
	r.item = conv.Item
	r.mu.Unlock()

	r.bind(conv.ID)
}

func (r *Resolution) pend(item *domain.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StatePending
	r.item = item
}

// HandleChatCreated bind when ev is about the pending item; false otherwise
func (r *Resolution) HandleChatCreated(ev domain.ChatCreatedPayload) bool {
	r.mu.Lock()
	match := r.state == StatePending && ev.ChatID != "" && ev.ItemID == r.itemID
	r.mu.Unlock()
	if !match {
		return false
	}
	return r.bind(ev.ChatID)
}

// Bind bind to a conversation created by an explicit call; false when already bound
func (r *Resolution) Bind(conversationID string) bool {
	if conversationID == "" {
		return false
	}
	return r.bind(conversationID)
}

func (r *Resolution) bind(conversationID string) bool {
	r.mu.Lock()
	if r.state == StateBound || r.state == StateResolving {
		r.mu.Unlock()
		return false
	}
	r.state = StateBound
	r.conversationID = conversationID
	close(r.bound)
	hooks := append([]func(string){}, r.onBound...)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(conversationID)
	}
	return true
}

// OnBound hook run once when a pending navigation binds
func (r *Resolution) OnBound(hook func(conversationID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onBound = append(r.onBound, hook)
}

// Bound closed once the durable id is known
func (r *Resolution) Bound() <-chan struct{} {
	return r.bound
}

// State current state
func (r *Resolution) State() ResolveState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Redirected true when an existing conversation replaced the item navigation
func (r *Resolution) Redirected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.redirected
}

// Ref current conversation reference
func (r *Resolution) Ref() domain.ConversationRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case StateBound:
		return domain.BoundRef(r.conversationID)
	case StatePending:
		return domain.PendingRef(r.itemID)
	default:
		return domain.ConversationRef{}
	}
}

// ConversationID durable id, empty until bound
func (r *Resolution) ConversationID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conversationID
}

// ItemID item of an item navigation
func (r *Resolution) ItemID() string {
	return r.itemID
}

// Item item metadata for the header, nil for conversation navigations
func (r *Resolution) Item() *domain.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.item
}

// Conversation existing conversation found by redirect
func (r *Resolution) Conversation() *domain.Conversation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conversation
}
