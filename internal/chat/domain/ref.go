package domain

// RefKind tag of a ConversationRef
type RefKind int

const (
	// RefNone nothing open
	RefNone RefKind = iota
	// RefPending item without a durable conversation yet
	RefPending
	// RefBound durable conversation id
	RefBound
)

// ConversationRef either Pending(itemID) or Bound(conversationID).
// The zero value refers to nothing.
type ConversationRef struct {
	kind RefKind
	id   string
}

// PendingRef reference an item that has no conversation yet
func PendingRef(itemID string) ConversationRef {
	return ConversationRef{kind: RefPending, id: itemID}
}

// BoundRef reference a durable conversation
func BoundRef(conversationID string) ConversationRef {
	return ConversationRef{kind: RefBound, id: conversationID}
}

// Kind ref tag
func (r ConversationRef) Kind() RefKind {
	return r.kind
}

// IsPending check pending
func (r ConversationRef) IsPending() bool {
	return r.kind == RefPending && r.id != ""
}

// IsBound check bound
func (r ConversationRef) IsBound() bool {
	return r.kind == RefBound && r.id != ""
}

// ItemID pending item id
func (r ConversationRef) ItemID() (string, bool) {
	if !r.IsPending() {
		return "", false
	}
	return r.id, true
}

// ConversationID durable conversation id
func (r ConversationRef) ConversationID() (string, bool) {
	if !r.IsBound() {
		return "", false
	}
	return r.id, true
}

// WireID id used as chatId on the wire (item id while pending)
func (r ConversationRef) WireID() string {
	return r.id
}

func (r ConversationRef) String() string {
	switch r.kind {
	case RefPending:
		return "pending:" + r.id
	case RefBound:
		return "bound:" + r.id
	default:
		return "none"
	}
}
