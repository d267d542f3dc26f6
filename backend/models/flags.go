// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package models

// ConversationAction is the closed set of per-conversation settings actions.
// Free-form strings from the request body are parsed into this set so an
// unsupported action is rejected up front.
type ConversationAction string

const (
	ActionArchive    ConversationAction = "archive"
	ActionMute       ConversationAction = "mute"
	ActionPin        ConversationAction = "pin"
	ActionFavorite   ConversationAction = "favorite"
	ActionList       ConversationAction = "list"
	ActionBlock      ConversationAction = "block"
	ActionMarkUnread ConversationAction = "markUnread"
)

// ParseConversationAction maps a request action name to a known action.
func ParseConversationAction(s string) (ConversationAction, bool) {
	switch a := ConversationAction(s); a {
	case ActionArchive, ActionMute, ActionPin, ActionFavorite,
		ActionList, ActionBlock, ActionMarkUnread:
		return a, true
	}
	return "", false
}

// IsFlag reports whether the action toggles a persistent per-conversation
// flag. markUnread is a one-shot action on the read watermark instead.
func (a ConversationAction) IsFlag() bool {
	return a != ActionMarkUnread
}
