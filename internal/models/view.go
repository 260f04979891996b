package models

import "time"

// MessageView is a Message with its sender resolved to public profile fields.
type MessageView struct {
	ID        string        `json:"id"`
	Sender    PublicProfile `json:"sender"`
	Content   string        `json:"content"`
	CreatedAt time.Time     `json:"timestamp"`
	ReadBy    []string      `json:"readBy"`
}

// ConversationView is what the API returns: participants and senders populated.
type ConversationView struct {
	ID              string          `json:"id"`
	Participants    []PublicProfile `json:"participants"`
	Messages        []MessageView   `json:"messages"`
	LastMessageTime *time.Time      `json:"lastMessageTime,omitempty"`
	Unread          map[string]int  `json:"unreadCount"`
	CreatedAt       time.Time       `json:"createdAt"`
}
