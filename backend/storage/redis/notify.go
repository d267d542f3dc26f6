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

package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tredditapp/messaging/backend/models"
)

const (
	dmNotifyPrefix    = "dm:notify:"    // dm:notify:{recipientId}
	groupNotifyPrefix = "group:notify:" // group:notify:{groupId}
)

// Notifier publishes new-message events so a push gateway can deliver them
// without waiting for the next client poll. Publishing is best-effort:
// clients still poll, so failures are logged and dropped.
type Notifier struct {
	rdb *redis.Client
	log *zap.Logger
}

func NewNotifier(rdb *redis.Client, log *zap.Logger) *Notifier {
	return &Notifier{rdb: rdb, log: log}
}

type messageEvent struct {
	EventID   string `json:"event_id"`
	Type      string `json:"type"`
	MessageID int64  `json:"message_id"`
	SenderID  int64  `json:"sender_id"`
	GroupID   int64  `json:"group_id,omitempty"`
}

func (n *Notifier) NotifyDirectMessage(ctx context.Context, msg *models.DirectMessage) {
	n.publish(ctx, fmt.Sprintf("%s%d", dmNotifyPrefix, msg.RecipientID), messageEvent{
		EventID:   uuid.New().String(),
		Type:      "new_dm",
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
	})
}

func (n *Notifier) NotifyGroupMessage(ctx context.Context, msg *models.GroupMessage) {
	n.publish(ctx, fmt.Sprintf("%s%d", groupNotifyPrefix, msg.GroupID), messageEvent{
		EventID:   uuid.New().String(),
		Type:      "new_group_message",
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		GroupID:   msg.GroupID,
	})
}

func (n *Notifier) publish(ctx context.Context, channel string, event messageEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Warn("failed to marshal notification", zap.Error(err))
		return
	}
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		n.log.Warn("failed to publish notification",
			zap.String("channel", channel), zap.Error(err))
	}
}

// Subscribe returns the pub/sub stream for a user's DM notifications.
// Gateways own the subscription lifecycle and must Close it.
func (n *Notifier) Subscribe(ctx context.Context, userID int64) *redis.PubSub {
	return n.rdb.Subscribe(ctx, fmt.Sprintf("%s%d", dmNotifyPrefix, userID))
}
