package app

import (
	"context"
	"errors"
	"testing"

	"campus_chat/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func conversation(id, itemID string, members ...string) domain.Conversation {
	conv := domain.Conversation{ID: id, Item: &domain.Item{ID: itemID, Title: "desk"}}
	for _, m := range members {
		conv.Participants = append(conv.Participants, domain.Participant{ID: m})
	}
	return conv
}

// 測試已有對話: redirect 並直接 Bound
func TestResolve_RedirectsToExisting(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("ListConversations", mock.Anything).Return([]domain.Conversation{
		conversation("c7", "i2", "buyer", "seller"),
		conversation("c9", "i1", "buyer", "seller"),
	}, nil)

	r := NewConversationResolver(store, "buyer")
	res, err := r.Resolve(ctx, "i1")

	require.NoError(t, err)
	assert.Equal(t, StateBound, res.State())
	assert.True(t, res.Redirected())
	assert.Equal(t, domain.BoundRef("c9"), res.Ref())
	assert.Equal(t, "c9", res.Conversation().ID)
	store.AssertNotCalled(t, "GetItem", mock.Anything, mock.Anything)
}

// 測試沒有對話: Pending 並帶 item
func TestResolve_PendingWhenNoConversation(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	item := &domain.Item{ID: "i1", Title: "desk", Status: domain.ItemActive, Seller: &domain.Participant{ID: "seller"}}
	store.On("ListConversations", mock.Anything).Return([]domain.Conversation{conversation("c7", "i2", "buyer", "seller")}, nil)
	store.On("GetItem", mock.Anything, "i1").Return(item, nil)

	r := NewConversationResolver(store, "buyer")
	res, err := r.Resolve(ctx, "i1")

	require.NoError(t, err)
	assert.Equal(t, StatePending, res.State())
	assert.Equal(t, domain.PendingRef("i1"), res.Ref())
	assert.Equal(t, item, res.Item())
	assert.Empty(t, res.ConversationID())
	store.AssertExpectations(t)
}

// 測試自己的 item 不能聊天
func TestResolve_OwnItem(t *testing.T) {
	store := new(MockStore)
	store.On("ListConversations", mock.Anything).Return([]domain.Conversation{}, nil)
	store.On("GetItem", mock.Anything, "i1").Return(&domain.Item{ID: "i1", Seller: &domain.Participant{ID: "me"}}, nil)

	_, err := NewConversationResolver(store, "me").Resolve(context.Background(), "i1")

	assert.ErrorIs(t, err, domain.ErrOwnItem)
}

// 測試 store 失敗直接回傳
func TestResolve_StoreFailure(t *testing.T) {
	store := new(MockStore)
	store.On("ListConversations", mock.Anything).Return(nil, errors.New("timeout"))

	res, err := NewConversationResolver(store, "buyer").Resolve(context.Background(), "i1")

	assert.Nil(t, res)
	assert.Error(t, err)
}

// 測試 chat_created 只綁定相符的 pending item, 之後重複事件無效
func TestResolution_HandleChatCreated(t *testing.T) {
	store := new(MockStore)
	store.On("ListConversations", mock.Anything).Return([]domain.Conversation{}, nil)
	store.On("GetItem", mock.Anything, "i1").Return(&domain.Item{ID: "i1", Seller: &domain.Participant{ID: "seller"}}, nil)

	res, err := NewConversationResolver(store, "buyer").Resolve(context.Background(), "i1")
	require.NoError(t, err)

	var boundTo []string
	res.OnBound(func(id string) { boundTo = append(boundTo, id) })

	assert.False(t, res.HandleChatCreated(domain.ChatCreatedPayload{ChatID: "c5", ItemID: "other"}))
	assert.Equal(t, StatePending, res.State())

	assert.True(t, res.HandleChatCreated(domain.ChatCreatedPayload{ChatID: "c9", ItemID: "i1"}))
	assert.False(t, res.HandleChatCreated(domain.ChatCreatedPayload{ChatID: "c9", ItemID: "i1"}))
	assert.False(t, res.Bind("c10"))

	assert.Equal(t, domain.BoundRef("c9"), res.Ref())
	assert.Equal(t, []string{"c9"}, boundTo)
	select {
	case <-res.Bound():
	default:
		t.Fatal("bound channel not closed")
	}
}

// 測試 ResolveConversation 直接 Bound, chat_created 無效
func TestResolveConversation_Bound(t *testing.T) {
	res := NewConversationResolver(new(MockStore), "buyer").ResolveConversation("c3")

	assert.Equal(t, StateBound, res.State())
	assert.False(t, res.Redirected())
	assert.False(t, res.HandleChatCreated(domain.ChatCreatedPayload{ChatID: "c4", ItemID: ""}))
	assert.Equal(t, domain.BoundRef("c3"), res.Ref())
}
