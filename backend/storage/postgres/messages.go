// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package postgres

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/tredditapp/messaging/backend/models"
	"github.com/tredditapp/messaging/backend/storage"
)

// AppendDirectMessage inserts the message and re-fetches the sender's
// display metadata. Two sequential round trips, no transaction; there is
// nothing to roll back if the second read fails.
func (s *Store) AppendDirectMessage(ctx context.Context, senderID, recipientID int64, text string) (*models.DirectMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, storage.ErrEmptyMessage
	}
	text = models.TruncateMessage(text)

	msg := &models.DirectMessage{
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO direct_messages (sender_id, recipient_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		senderID, recipientID, text).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.AppendDirectMessage.Insert")
	}

	sender, err := s.userSummary(ctx, senderID)
	if err != nil {
		return nil, err
	}
	msg.Sender = sender
	return msg, nil
}

// Conversation returns messages between the two users oldest-to-newest,
// keeping the newest limit rows when the conversation is longer.
func (s *Store) Conversation(ctx context.Context, viewerID, otherID int64, limit int) ([]models.DirectMessage, error) {
	limit = storage.ClampLimit(limit, storage.DefaultConversationLimit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.sender_id, m.recipient_id, m.body, m.created_at, `+userColumns+`
		FROM direct_messages m
		JOIN users u ON u.id = m.sender_id
		WHERE (m.sender_id = $1 AND m.recipient_id = $2)
		   OR (m.sender_id = $2 AND m.recipient_id = $1)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $3`,
		viewerID, otherID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.Conversation.Query")
	}
	defer rows.Close()

	var msgs []models.DirectMessage
	for rows.Next() {
		var m models.DirectMessage
		if err := rows.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.Text, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.Username, &m.Sender.Nickname, &m.Sender.AvatarURL,
			&m.Sender.IsAdmin, &m.Sender.IsVerified); err != nil {
			return nil, errors.Wrap(err, "postgres.Conversation.Scan")
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "postgres.Conversation.Rows")
	}

	// Query is newest-first so LIMIT keeps the tail; flip to oldest-first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ConversationSummaries computes the de-duplicated inbox: one row per
// partner, last message by max(created_at) then max(id), unread counted
// against the viewer's watermark (missing watermark counts everything).
func (s *Store) ConversationSummaries(ctx context.Context, viewerID int64, limit int) ([]models.ConversationSummary, error) {
	limit = storage.ClampLimit(limit, storage.DefaultSummaryLimit)

	rows, err := s.db.QueryContext(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END)
				CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END AS other_id,
				m.sender_id, m.body, m.created_at
			FROM direct_messages m
			WHERE m.sender_id = $1 OR m.recipient_id = $1
			ORDER BY CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END,
				m.created_at DESC, m.id DESC
		)
		SELECT l.body, l.sender_id, l.created_at,
			(SELECT COUNT(*) FROM direct_messages dm
			 WHERE dm.recipient_id = $1 AND dm.sender_id = l.other_id
			   AND dm.created_at > COALESCE(
				(SELECT r.last_seen_at FROM conversation_reads r
				 WHERE r.user_id = $1 AND r.other_user_id = l.other_id),
				'epoch'::timestamptz)),
			`+userColumns+`
		FROM latest l
		JOIN users u ON u.id = l.other_id
		ORDER BY l.created_at DESC
		LIMIT $2`,
		viewerID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.ConversationSummaries.Query")
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var c models.ConversationSummary
		if err := rows.Scan(&c.LastMessage, &c.LastSenderID, &c.LastMessageAt, &c.UnreadCount,
			&c.OtherUser.ID, &c.OtherUser.Username, &c.OtherUser.Nickname,
			&c.OtherUser.AvatarURL, &c.OtherUser.IsAdmin, &c.OtherUser.IsVerified); err != nil {
			return nil, errors.Wrap(err, "postgres.ConversationSummaries.Scan")
		}
		summaries = append(summaries, c)
	}
	return summaries, rows.Err()
}

// ConversationStarters lists mutual follows the viewer has never exchanged
// a message with. Unioned with summaries by the client, never merged here.
func (s *Store) ConversationStarters(ctx context.Context, viewerID int64) ([]models.UserSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM follows f
		JOIN follows back ON back.follower_id = f.followee_id AND back.followee_id = f.follower_id
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM direct_messages dm
			WHERE (dm.sender_id = $1 AND dm.recipient_id = u.id)
			   OR (dm.sender_id = u.id AND dm.recipient_id = $1))
		ORDER BY u.username`,
		viewerID)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.ConversationStarters.Query")
	}
	defer rows.Close()

	var users []models.UserSummary
	for rows.Next() {
		var u models.UserSummary
		if err := scanUser(rows, &u); err != nil {
			return nil, errors.Wrap(err, "postgres.ConversationStarters.Scan")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) MarkConversationRead(ctx context.Context, viewerID, otherID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_reads (user_id, other_user_id, last_seen_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id, other_user_id)
		DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at`,
		viewerID, otherID)
	return errors.Wrap(err, "postgres.MarkConversationRead")
}

// MarkAllConversationsRead advances the watermark for every current partner
// rather than writing a global timestamp, so marking one conversation
// unread later does not resurrect the others.
func (s *Store) MarkAllConversationsRead(ctx context.Context, viewerID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversation_reads (user_id, other_user_id, last_seen_at)
		SELECT $1,
			CASE WHEN m.sender_id = $1 THEN m.recipient_id ELSE m.sender_id END,
			CURRENT_TIMESTAMP
		FROM direct_messages m
		WHERE m.sender_id = $1 OR m.recipient_id = $1
		GROUP BY 2
		ON CONFLICT (user_id, other_user_id)
		DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at`,
		viewerID)
	return errors.Wrap(err, "postgres.MarkAllConversationsRead")
}

// MarkConversationUnread drops the watermark row; every incoming message in
// the conversation counts as unread again.
func (s *Store) MarkConversationUnread(ctx context.Context, viewerID, otherID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM conversation_reads
		WHERE user_id = $1 AND other_user_id = $2`,
		viewerID, otherID)
	return errors.Wrap(err, "postgres.MarkConversationUnread")
}
