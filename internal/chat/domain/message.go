package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// MessageKind message payload kind
type MessageKind string

const (
	// KindText plain text
	KindText MessageKind = "text"
	// KindImage image attachment
	KindImage MessageKind = "image"
	// KindFile other attachment (pdf ...)
	KindFile MessageKind = "file"
)

// Preview labels sent as content of attachment messages
const (
	ImagePreview = "📷 Image"
	FilePreview  = "📄 File"
)

// MaxAttachmentSize upload limit 5 MiB
const MaxAttachmentSize = 5 << 20

// KindForMIME image/* is an image, anything else a file
func KindForMIME(mimeType string) MessageKind {
	if strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return KindImage
	}
	return KindFile
}

// PreviewFor fixed preview label per kind
func PreviewFor(kind MessageKind) string {
	if kind == KindImage {
		return ImagePreview
	}
	return FilePreview
}

// Message 聊天訊息, ID 由 store 產生
type Message struct {
	ID             string      `bson:"_id" json:"_id"`
	ConversationID string      `bson:"chat_id" json:"chatId"`
	Sender         Participant `bson:"sender" json:"sender"`
	Kind           MessageKind `bson:"type" json:"type"`
	Content        string      `bson:"content" json:"content"`
	FileURL        string      `bson:"file_url,omitempty" json:"fileUrl,omitempty"`
	FileName       string      `bson:"file_name,omitempty" json:"fileName,omitempty"`
	MIMEType       string      `bson:"mime_type,omitempty" json:"mimeType,omitempty"`
	Seq            int64       `bson:"seq" json:"seq,omitempty"`
	CreatedAt      time.Time   `bson:"created_at" json:"createdAt"`
}

// Attachment returns the attachment descriptor, false for text messages
func (m Message) Attachment() (Attachment, bool) {
	if m.Kind == KindText || m.FileURL == "" {
		return Attachment{}, false
	}
	return Attachment{Kind: m.Kind, URL: m.FileURL, FileName: m.FileName, MIMEType: m.MIMEType}, true
}

// UnmarshalJSON chatId / sender 可能是 id 字串, 也可能是 populate 過的物件
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var raw struct {
		plain
		ConversationID json.RawMessage `json:"chatId"`
		Sender         json.RawMessage `json:"sender"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Message(raw.plain)

	chatID, err := decodeRefID(raw.ConversationID)
	if err != nil {
		return err
	}
	m.ConversationID = chatID

	m.Sender = Participant{}
	if isString(raw.Sender) {
		return json.Unmarshal(raw.Sender, &m.Sender.ID)
	}
	if len(raw.Sender) > 0 && !bytes.Equal(raw.Sender, []byte("null")) {
		return json.Unmarshal(raw.Sender, &m.Sender)
	}
	return nil
}

func decodeRefID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if isString(raw) {
		var id string
		err := json.Unmarshal(raw, &id)
		return id, err
	}
	var obj struct {
		ID string `json:"_id"`
	}
	err := json.Unmarshal(raw, &obj)
	return obj.ID, err
}

func isString(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '"'
}

// Attachment uploaded file descriptor returned by the store
type Attachment struct {
	Kind     MessageKind `json:"kind"`
	URL      string      `json:"url"`
	FileName string      `json:"fileName"`
	MIMEType string      `json:"mimeType"`
}

// Upload file chosen by the user, not yet uploaded
type Upload struct {
	FileName string
	MIMEType string
	Data     []byte
}

// Size upload size in bytes
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}
