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

package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/tredditapp/messaging/backend/models"
	"github.com/tredditapp/messaging/backend/storage"
)

func (s *Store) isGroupMember(ctx context.Context, groupID, userID int64) (bool, error) {
	var member bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`,
		groupID, userID).Scan(&member)
	if err != nil {
		return false, errors.Wrap(err, "postgres.isGroupMember")
	}
	return member, nil
}

// CreateGroup inserts the group and its initial member set in one
// transaction. The creator is a member even when omitted from memberIDs.
func (s *Store) CreateGroup(ctx context.Context, creatorID int64, name string, memberIDs []int64) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, storage.ErrInvalidGroupName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.CreateGroup.Begin")
	}
	defer tx.Rollback()

	var groupID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO groups (name, created_by)
		VALUES ($1, $2)
		RETURNING id`,
		name, creatorID).Scan(&groupID)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.CreateGroup.Insert")
	}

	for _, id := range append([]int64{creatorID}, memberIDs...) {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO group_members (group_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (group_id, user_id) DO NOTHING`,
			groupID, id)
		if err != nil {
			return nil, errors.Wrap(err, "postgres.CreateGroup.AddMember")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "postgres.CreateGroup.Commit")
	}

	return s.groupByID(ctx, groupID)
}

// UpdateGroup applies the patch and the idempotent member set operations,
// then returns the refreshed group. Requester must be a current member.
func (s *Store) UpdateGroup(ctx context.Context, requesterID, groupID int64, upd models.GroupUpdate) (*models.Group, error) {
	member, err := s.isGroupMember(ctx, groupID, requesterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, storage.ErrNotInGroup
	}

	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, storage.ErrInvalidGroupName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.UpdateGroup.Begin")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE groups SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			avatar_url = COALESCE($4, avatar_url)
		WHERE id = $1`,
		groupID, nullableTrimmed(upd.Name), nullable(upd.Description), nullable(upd.AvatarURL))
	if err != nil {
		return nil, errors.Wrap(err, "postgres.UpdateGroup.Update")
	}

	for _, id := range upd.AddMemberIDs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO group_members (group_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (group_id, user_id) DO NOTHING`,
			groupID, id)
		if err != nil {
			return nil, errors.Wrap(err, "postgres.UpdateGroup.AddMember")
		}
	}

	for _, id := range upd.RemoveMemberIDs {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`,
			groupID, id)
		if err != nil {
			return nil, errors.Wrap(err, "postgres.UpdateGroup.RemoveMember")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "postgres.UpdateGroup.Commit")
	}

	return s.groupByID(ctx, groupID)
}

// GroupDetails returns ErrNoAccess for nonexistent groups and non-member
// viewers alike; callers cannot probe for group existence.
func (s *Store) GroupDetails(ctx context.Context, viewerID, groupID int64) (*models.Group, error) {
	member, err := s.isGroupMember(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, storage.ErrNoAccess
	}
	return s.groupByID(ctx, groupID)
}

func (s *Store) AppendGroupMessage(ctx context.Context, senderID, groupID int64, text string) (*models.GroupMessage, error) {
	member, err := s.isGroupMember(ctx, groupID, senderID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, storage.ErrNotInGroup
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, storage.ErrEmptyMessage
	}
	text = models.TruncateMessage(text)

	msg := &models.GroupMessage{
		GroupID:  groupID,
		SenderID: senderID,
		Text:     text,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO group_messages (group_id, sender_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		groupID, senderID, text).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.AppendGroupMessage.Insert")
	}

	sender, err := s.userSummary(ctx, senderID)
	if err != nil {
		return nil, err
	}
	msg.Sender = sender
	return msg, nil
}

// GroupMessagesAfter is the polling fetch: all messages with id greater
// than afterID, oldest first. Non-members get the same no-access result as
// a missing group.
func (s *Store) GroupMessagesAfter(ctx context.Context, viewerID, groupID, afterID int64) ([]models.GroupMessage, error) {
	member, err := s.isGroupMember(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, storage.ErrNoAccess
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.group_id, m.sender_id, m.body, m.created_at, `+userColumns+`
		FROM group_messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.group_id = $1 AND m.id > $2
		ORDER BY m.id
		LIMIT $3`,
		groupID, afterID, storage.MaxFetchLimit)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.GroupMessagesAfter.Query")
	}
	defer rows.Close()

	var msgs []models.GroupMessage
	for rows.Next() {
		var m models.GroupMessage
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.Text, &m.CreatedAt,
			&m.Sender.ID, &m.Sender.Username, &m.Sender.Nickname, &m.Sender.AvatarURL,
			&m.Sender.IsAdmin, &m.Sender.IsVerified); err != nil {
			return nil, errors.Wrap(err, "postgres.GroupMessagesAfter.Scan")
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) MarkGroupConversationRead(ctx context.Context, viewerID, groupID int64) error {
	member, err := s.isGroupMember(ctx, groupID, viewerID)
	if err != nil {
		return err
	}
	if !member {
		return storage.ErrNotInGroup
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO group_reads (group_id, user_id, last_seen_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (group_id, user_id)
		DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at`,
		groupID, viewerID)
	return errors.Wrap(err, "postgres.MarkGroupConversationRead")
}

func (s *Store) groupByID(ctx context.Context, groupID int64) (*models.Group, error) {
	g := &models.Group{}
	var description, avatarURL sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, avatar_url, created_by, created_at
		FROM groups WHERE id = $1`,
		groupID).Scan(&g.ID, &g.Name, &description, &avatarURL, &g.CreatedBy, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNoAccess
	}
	if err != nil {
		return nil, errors.Wrap(err, "postgres.groupByID")
	}
	g.Description = description.String
	g.AvatarURL = avatarURL.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at, u.id`,
		groupID)
	if err != nil {
		return nil, errors.Wrap(err, "postgres.groupByID.Members")
	}
	defer rows.Close()

	for rows.Next() {
		var u models.UserSummary
		if err := scanUser(rows, &u); err != nil {
			return nil, errors.Wrap(err, "postgres.groupByID.ScanMember")
		}
		g.Members = append(g.Members, u)
	}
	return g, rows.Err()
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableTrimmed(s *string) any {
	if s == nil {
		return nil
	}
	return strings.TrimSpace(*s)
}
