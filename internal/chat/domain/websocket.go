package domain

import "encoding/json"

// Action live connection event name
type Action string

const (
	// JoinChat outbound advisory room join
	JoinChat Action = "join_chat"
	// SendMessage outbound send, chatId is a conversation id or an item id
	SendMessage Action = "send_message"
	// ReceiveMessage inbound message fan-out (sender gets an echo)
	ReceiveMessage Action = "receive_message"
	// ChatCreated inbound, a pending item send materialized a conversation
	ChatCreated Action = "chat_created"
	// ErrorEvent inbound, server rejected an outbound event
	ErrorEvent Action = "error"
)

// Frame live connection envelope {"event": ..., "data": ...}
type Frame struct {
	Event Action          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshal payload into a frame
func NewFrame(event Action, payload interface{}) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: data}, nil
}

// Decode unmarshal frame data into v
func (f Frame) Decode(v interface{}) error {
	return json.Unmarshal(f.Data, v)
}

// JoinChatPayload join_chat payload
type JoinChatPayload struct {
	ChatID string `json:"chatId"`
}

// SendMessagePayload send_message payload
type SendMessagePayload struct {
	ChatID   string      `json:"chatId"`
	Content  string      `json:"content"`
	Type     MessageKind `json:"type"`
	FileURL  string      `json:"fileUrl,omitempty"`
	FileName string      `json:"fileName,omitempty"`
	MIMEType string      `json:"mimeType,omitempty"`
}

// ChatCreatedPayload chat_created payload
type ChatCreatedPayload struct {
	ChatID string `json:"chatId"`
	ItemID string `json:"itemId"`
}

// ErrorPayload error payload
type ErrorPayload struct {
	Action  Action `json:"action,omitempty"`
	Message string `json:"message"`
}
