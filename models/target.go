package models

import "strings"

// PushTarget identifies one telegram destination. TopicID is empty for
// plain group chats and set for forum topics.
type PushTarget struct {
	ChatID   string `json:"chat_id"`
	TopicID  string `json:"topic_id,omitempty"`
	Language string `json:"language"`
}

// NormalizedChatID returns the chat id with the supergroup prefix
// applied. Bare positive ids coming from config or the targets API are
// prefixed with -100; ids already carrying a sign pass through.
func (t PushTarget) NormalizedChatID() string {
	id := strings.TrimSpace(t.ChatID)
	if id == "" || strings.HasPrefix(id, "-") {
		return id
	}
	return "-100" + id
}

// Key is the dedup identity of a target: one message per chat/topic
// pair regardless of which resolution path produced it.
func (t PushTarget) Key() string {
	return t.NormalizedChatID() + ":" + strings.TrimSpace(t.TopicID)
}

// Valid reports whether the target is addressable at all.
func (t PushTarget) Valid() bool {
	id := strings.TrimSpace(t.ChatID)
	return id != "" && id != "0"
}
