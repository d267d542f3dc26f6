// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

import "time"

// UserSummary is the display metadata joined onto messages and summaries.
// It mirrors what the authentication collaborator puts in the token.
type UserSummary struct {
	ID         int64  `json:"id" db:"id"`
	Username   string `json:"username" db:"username"`
	Nickname   string `json:"nickname" db:"nickname"`
	AvatarURL  string `json:"avatar_url,omitempty" db:"avatar_url"`
	IsAdmin    bool   `json:"is_admin" db:"is_admin"`
	IsVerified bool   `json:"is_verified" db:"is_verified"`
}

// DirectMessage is a single sender→recipient message. Rows are append-only;
// the body is truncated to MaxMessageRunes before insert.
type DirectMessage struct {
	ID          int64       `json:"id" db:"id"`
	SenderID    int64       `json:"sender_id" db:"sender_id"`
	RecipientID int64       `json:"recipient_id" db:"recipient_id"`
	Text        string      `json:"text" db:"body"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	Sender      UserSummary `json:"sender"`
}

// ConversationSummary is one inbox row per distinct conversation partner.
// Derived on read, never stored.
type ConversationSummary struct {
	OtherUser     UserSummary `json:"other_user"`
	LastMessage   string      `json:"last_message"`
	LastSenderID  int64       `json:"last_sender_id"`
	LastMessageAt time.Time   `json:"last_message_at"`
	UnreadCount   int64       `json:"unread_count"`
}

// MessagingPreference is the per-user opt-in that lets non-mutual accounts
// message the user.
type MessagingPreference struct {
	UserID          int64 `json:"user_id" db:"user_id"`
	AllowFromAnyone bool  `json:"allow_from_anyone" db:"allow_from_anyone"`
}

// MaxMessageRunes is the stored message length cap. Longer bodies are
// truncated, never rejected.
const MaxMessageRunes = 1000

// TruncateMessage caps the body at MaxMessageRunes characters.
func TruncateMessage(text string) string {
	r := []rune(text)
	if len(r) > MaxMessageRunes {
		r = r[:MaxMessageRunes]
	}
	return string(r)
}
