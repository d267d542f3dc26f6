// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package postgres

import (
	"context"

	"github.com/pkg/errors"
)

// CanSendDirectMessage allows mutual follows, or anyone when the recipient
// opted into open messages. Always read fresh, never cached.
func (s *Store) CanSendDirectMessage(ctx context.Context, senderID, recipientID int64) (bool, error) {
	var allowed bool
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(
			(SELECT p.allow_from_anyone FROM messaging_preferences p WHERE p.user_id = $2),
			FALSE)
		OR (
			EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)
			AND EXISTS (SELECT 1 FROM follows WHERE follower_id = $2 AND followee_id = $1)
		)`,
		senderID, recipientID).Scan(&allowed)
	if err != nil {
		return false, errors.Wrap(err, "postgres.CanSendDirectMessage")
	}
	return allowed, nil
}

func (s *Store) SetMessagingPreference(ctx context.Context, userID int64, allowFromAnyone bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messaging_preferences (user_id, allow_from_anyone)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET allow_from_anyone = EXCLUDED.allow_from_anyone`,
		userID, allowFromAnyone)
	return errors.Wrap(err, "postgres.SetMessagingPreference")
}

func (s *Store) Follow(ctx context.Context, followerID, followeeID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, followee_id)
		VALUES ($1, $2)
		ON CONFLICT (follower_id, followee_id) DO NOTHING`,
		followerID, followeeID)
	return errors.Wrap(err, "postgres.Follow")
}

func (s *Store) Unfollow(ctx context.Context, followerID, followeeID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`,
		followerID, followeeID)
	return errors.Wrap(err, "postgres.Unfollow")
}
