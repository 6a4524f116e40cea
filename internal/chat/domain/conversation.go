package domain

import "time"

// ItemStatus marketplace item status
type ItemStatus string

const (
	// ItemActive item still on sale
	ItemActive ItemStatus = "active"
	// ItemSold item sold
	ItemSold ItemStatus = "sold"
	// ItemDeleted item removed by seller
	ItemDeleted ItemStatus = "deleted"
)

// Participant definition chat member display identity
type Participant struct {
	ID    string `bson:"_id" json:"_id"`
	Name  string `bson:"name,omitempty" json:"name,omitempty"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
	Role  string `bson:"role,omitempty" json:"role,omitempty"`
}

// DisplayName 通知/標題顯示用, email 優先
func (p Participant) DisplayName() string {
	switch {
	case p.Email != "":
		return p.Email
	case p.Name != "":
		return p.Name
	default:
		return "Someone"
	}
}

// Item definition marketplace item referenced by a conversation
type Item struct {
	ID     string       `bson:"_id" json:"_id"`
	Title  string       `bson:"title" json:"title"`
	Price  float64      `bson:"price" json:"price"`
	Images []string     `bson:"images,omitempty" json:"images,omitempty"`
	Status ItemStatus   `bson:"status" json:"status"`
	Seller *Participant `bson:"seller,omitempty" json:"seller,omitempty"`
}

// SellerID return item owner id, empty when item has no seller
func (i *Item) SellerID() string {
	if i == nil || i.Seller == nil {
		return ""
	}
	return i.Seller.ID
}

// MessagePreview denormalized latest message of a conversation
type MessagePreview struct {
	Content string      `bson:"content" json:"content"`
	Type    MessageKind `bson:"type,omitempty" json:"type,omitempty"`
}

// Conversation definition 1 on 1 chat about one item
type Conversation struct {
	ID            string          `bson:"_id" json:"_id"`
	ItemID        string          `bson:"item_id" json:"-"`
	PairKey       string          `bson:"pair_key" json:"-"`
	Participants  []Participant   `bson:"participants" json:"participants"`
	Item          *Item           `bson:"-" json:"item,omitempty"`
	LatestMessage *MessagePreview `bson:"latest_message,omitempty" json:"latestMessage,omitempty"`
	LastMessage   string          `bson:"-" json:"lastMessage,omitempty"`
	MessageSeq    int64           `bson:"message_seq" json:"-"`
	CreatedAt     time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time       `bson:"updated_at" json:"updatedAt"`
}

// ItemRef return the item id this conversation is about
func (c *Conversation) ItemRef() string {
	if c.Item != nil && c.Item.ID != "" {
		return c.Item.ID
	}
	return c.ItemID
}

// Counterpart return the participant who is not userID
func (c *Conversation) Counterpart(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.ID != userID {
			return p, true
		}
	}
	return Participant{}, false
}

// HasParticipant check userID is one of the two members
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// Preview sidebar preview text
func (c *Conversation) Preview() string {
	if c.LatestMessage != nil && c.LatestMessage.Content != "" {
		return c.LatestMessage.Content
	}
	if c.LastMessage != "" {
		return c.LastMessage
	}
	return "Start a conversation"
}

// PairKey uniqueness key of a conversation: one per (item, buyer, seller)
func PairKey(itemID, buyerID, sellerID string) string {
	return itemID + "|" + buyerID + "|" + sellerID
}
