// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package storage

import (
	"context"

	"github.com/tredditapp/messaging/backend/apperr"
	"github.com/tredditapp/messaging/backend/models"
)

// Sentinel errors shared by the postgres and demo implementations. Handlers
// map these to HTTP status codes via their apperr code.
var (
	ErrEmptyMessage     = apperr.InvalidArg("message text is empty")
	ErrInvalidGroupName = apperr.InvalidArg("group name is empty")
	ErrNotInGroup       = apperr.Forbidden("not a member of this group")
	ErrNoAccess         = apperr.NotFound("group not found")
	ErrUserNotFound     = apperr.NotFound("user not found")
)

// Conversation fetch limits. Requests beyond the ceiling are clamped, not
// rejected.
const (
	DefaultConversationLimit = 80
	DefaultSummaryLimit      = 40
	MaxFetchLimit            = 200
)

// ClampLimit applies the default for non-positive limits and the shared
// ceiling for oversized ones.
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxFetchLimit {
		return MaxFetchLimit
	}
	return limit
}

type MessageStore interface {
	// AppendDirectMessage inserts a message and returns it enriched with
	// the sender's display metadata. Text is truncated beyond 1000
	// characters; empty-after-trim text fails with ErrEmptyMessage.
	AppendDirectMessage(ctx context.Context, senderID, recipientID int64, text string) (*models.DirectMessage, error)

	// Conversation returns messages between the two users ordered
	// oldest-to-newest, keeping the newest limit rows when capped.
	Conversation(ctx context.Context, viewerID, otherID int64, limit int) ([]models.DirectMessage, error)

	// ConversationSummaries returns one row per conversation partner,
	// newest conversation first.
	ConversationSummaries(ctx context.Context, viewerID int64, limit int) ([]models.ConversationSummary, error)

	// ConversationStarters lists mutual-follow contacts with no message
	// history, so a new chat can be initiated.
	ConversationStarters(ctx context.Context, viewerID int64) ([]models.UserSummary, error)

	MarkConversationRead(ctx context.Context, viewerID, otherID int64) error
	MarkAllConversationsRead(ctx context.Context, viewerID int64) error

	// MarkConversationUnread drops the viewer's watermark so all incoming
	// messages in the conversation count as unread again.
	MarkConversationUnread(ctx context.Context, viewerID, otherID int64) error
}

type AccessStore interface {
	// CanSendDirectMessage is evaluated fresh on every send; follow
	// relationships and preferences change between messages.
	CanSendDirectMessage(ctx context.Context, senderID, recipientID int64) (bool, error)

	SetMessagingPreference(ctx context.Context, userID int64, allowFromAnyone bool) error

	// Follow is written by the profile collaborator; the gate only reads.
	Follow(ctx context.Context, followerID, followeeID int64) error
	Unfollow(ctx context.Context, followerID, followeeID int64) error
}

type GroupStore interface {
	// CreateGroup makes the creator a member even if omitted from
	// memberIDs. Blank names fail with ErrInvalidGroupName.
	CreateGroup(ctx context.Context, creatorID int64, name string, memberIDs []int64) (*models.Group, error)

	// UpdateGroup applies a metadata patch and idempotent member
	// add/remove sets, returning the refreshed group.
	UpdateGroup(ctx context.Context, requesterID, groupID int64, upd models.GroupUpdate) (*models.Group, error)

	// GroupDetails returns ErrNoAccess for both nonexistent groups and
	// non-member viewers.
	GroupDetails(ctx context.Context, viewerID, groupID int64) (*models.Group, error)

	AppendGroupMessage(ctx context.Context, senderID, groupID int64, text string) (*models.GroupMessage, error)

	// GroupMessagesAfter returns messages with id greater than afterID
	// for polling-based updates.
	GroupMessagesAfter(ctx context.Context, viewerID, groupID, afterID int64) ([]models.GroupMessage, error)

	MarkGroupConversationRead(ctx context.Context, viewerID, groupID int64) error
}

type FlagStore interface {
	SetConversationFlag(ctx context.Context, userID, otherID int64, flag models.ConversationAction, enabled bool) error
	ConversationFlags(ctx context.Context, userID, otherID int64) ([]models.ConversationAction, error)
}

// Notifier publishes best-effort new-message events for push gateways.
// Polling remains the fallback transport, so publish failures are logged,
// never surfaced.
type Notifier interface {
	NotifyDirectMessage(ctx context.Context, msg *models.DirectMessage)
	NotifyGroupMessage(ctx context.Context, msg *models.GroupMessage)
}

// NopNotifier is used in demo mode and wherever Redis is not configured.
type NopNotifier struct{}

func (NopNotifier) NotifyDirectMessage(context.Context, *models.DirectMessage) {}
func (NopNotifier) NotifyGroupMessage(context.Context, *models.GroupMessage)   {}

type Store interface {
	MessageStore
	AccessStore
	GroupStore
}
