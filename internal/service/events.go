package service

import "github.com/asiradnan/SoulSpeak/internal/models"

// Events pushed through the gateway. Delivery is best-effort and at-most-once;
// clients reconcile against the store on reconnect.

type NewMessageEvent struct {
	Type           string             `json:"type"`
	ConversationID string             `json:"chatId"`
	Message        models.MessageView `json:"message"`
}

type NewConversationEvent struct {
	Type         string                  `json:"type"`
	Conversation models.ConversationView `json:"chat"`
}

type MessagesReadEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"chatId"`
	UserID         string `json:"userId"`
}

func newMessageEvent(conversationID string, msg models.MessageView) NewMessageEvent {
	return NewMessageEvent{Type: "newMessage", ConversationID: conversationID, Message: msg}
}

func newConversationEvent(conv models.ConversationView) NewConversationEvent {
	return NewConversationEvent{Type: "newChat", Conversation: conv}
}

func messagesReadEvent(conversationID, userID string) MessagesReadEvent {
	return MessagesReadEvent{Type: "messagesRead", ConversationID: conversationID, UserID: userID}
}
