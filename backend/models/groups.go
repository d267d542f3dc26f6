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

package models

import "time"

// Group is a many-to-many conversation. Members have no differentiated
// roles beyond membership; the creator is always a member.
type Group struct {
	ID          int64         `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Description string        `json:"description,omitempty" db:"description"`
	AvatarURL   string        `json:"avatar_url,omitempty" db:"avatar_url"`
	CreatedBy   int64         `json:"created_by" db:"created_by"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	Members     []UserSummary `json:"members"`
}

// GroupUpdate is a partial patch of group metadata plus idempotent
// membership set operations. Nil fields are left unchanged.
type GroupUpdate struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	AvatarURL       *string `json:"avatar_url,omitempty"`
	AddMemberIDs    []int64 `json:"add_member_ids,omitempty"`
	RemoveMemberIDs []int64 `json:"remove_member_ids,omitempty"`
}

// GroupMessage has the same shape as DirectMessage but is keyed by group.
// Clients poll with "messages after id" for incremental updates.
type GroupMessage struct {
	ID        int64       `json:"id" db:"id"`
	GroupID   int64       `json:"group_id" db:"group_id"`
	SenderID  int64       `json:"sender_id" db:"sender_id"`
	Text      string      `json:"text" db:"body"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	Sender    UserSummary `json:"sender"`
}
