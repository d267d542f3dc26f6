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

func (s *Store) Migrate() error {
	migrations := []string{
		// Users table is owned by the account service; created here so the
		// messaging service can run standalone (joins and tests need it).
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(30) NOT NULL UNIQUE,
			nickname VARCHAR(60) NOT NULL DEFAULT '',
			avatar_url TEXT,
			is_admin BOOLEAN NOT NULL DEFAULT FALSE,
			is_verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Follow edges, read by the access gate
		`CREATE TABLE IF NOT EXISTS follows (
			follower_id BIGINT NOT NULL,
			followee_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (follower_id, followee_id)
		)`,

		// Per-user open-inbox opt-in
		`CREATE TABLE IF NOT EXISTS messaging_preferences (
			user_id BIGINT PRIMARY KEY,
			allow_from_anyone BOOLEAN NOT NULL DEFAULT FALSE
		)`,

		// Direct messages, append-only
		`CREATE TABLE IF NOT EXISTS direct_messages (
			id BIGSERIAL PRIMARY KEY,
			sender_id BIGINT NOT NULL,
			recipient_id BIGINT NOT NULL,
			body VARCHAR(1000) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes for conversation fetch and inbox aggregation
		`CREATE INDEX IF NOT EXISTS idx_dm_sender
		ON direct_messages(sender_id, created_at DESC)`,

		`CREATE INDEX IF NOT EXISTS idx_dm_recipient
		ON direct_messages(recipient_id, created_at DESC)`,

		// Per-viewer per-partner read watermark
		`CREATE TABLE IF NOT EXISTS conversation_reads (
			user_id BIGINT NOT NULL,
			other_user_id BIGINT NOT NULL,
			last_seen_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (user_id, other_user_id)
		)`,

		// Group conversations
		`CREATE TABLE IF NOT EXISTS groups (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(120) NOT NULL,
			description TEXT,
			avatar_url TEXT,
			created_by BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (group_id, user_id),
			FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS group_messages (
			id BIGSERIAL PRIMARY KEY,
			group_id BIGINT NOT NULL,
			sender_id BIGINT NOT NULL,
			body VARCHAR(1000) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
		)`,

		// Index for incremental polling by id
		`CREATE INDEX IF NOT EXISTS idx_group_messages
		ON group_messages(group_id, id)`,

		// Per-member group read watermark
		`CREATE TABLE IF NOT EXISTS group_reads (
			group_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			last_seen_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (group_id, user_id),
			FOREIGN KEY (group_id) REFERENCES groups(id) ON DELETE CASCADE
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
