package domain

import "errors"

var (
	// ErrConnectionUnavailable live connection could not be established or was dropped
	ErrConnectionUnavailable = errors.New("connection unavailable")
	// ErrHistoryFetchFailed message history fetch failed
	ErrHistoryFetchFailed = errors.New("history fetch failed")
	// ErrConversationCreationFailed create conversation call failed
	ErrConversationCreationFailed = errors.New("conversation creation failed")
	// ErrAttachmentTooLarge attachment over MaxAttachmentSize
	ErrAttachmentTooLarge = errors.New("attachment too large")
	// ErrUploadFailed attachment upload failed
	ErrUploadFailed = errors.New("upload failed")
	// ErrStaleEventIgnored event or result not for the open conversation, or duplicate
	ErrStaleEventIgnored = errors.New("stale event ignored")

	// ErrOwnItem cannot chat about your own item
	ErrOwnItem = errors.New("cannot start a conversation about your own item")
	// ErrItemUnavailable item deleted
	ErrItemUnavailable = errors.New("item is no longer available")
	// ErrNotFound resource not found
	ErrNotFound = errors.New("not found")
	// ErrNotParticipant user is not a member of the conversation
	ErrNotParticipant = errors.New("not a participant of this conversation")
	// ErrNoConversation send without an open conversation or pending item
	ErrNoConversation = errors.New("no conversation open")
	// ErrEmptyMessage blank text message
	ErrEmptyMessage = errors.New("message is empty")
)
