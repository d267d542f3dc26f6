// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/tredditapp/messaging/backend/models"
)

// Conversation flags are small per-viewer sets that change often and carry
// no history, so they live in Redis rather than postgres.
//
// Key layout: dm:flag:{flag}:{userID} -> set of partner ids.
const flagKeyPrefix = "dm:flag:"

type FlagStore struct {
	rdb *redis.Client
}

func NewFlagStore(rdb *redis.Client) *FlagStore {
	return &FlagStore{rdb: rdb}
}

func flagKey(flag models.ConversationAction, userID int64) string {
	return fmt.Sprintf("%s%s:%d", flagKeyPrefix, flag, userID)
}

func (s *FlagStore) SetConversationFlag(ctx context.Context, userID, otherID int64, flag models.ConversationAction, enabled bool) error {
	key := flagKey(flag, userID)
	if enabled {
		if err := s.rdb.SAdd(ctx, key, otherID).Err(); err != nil {
			return fmt.Errorf("failed to set %s flag: %w", flag, err)
		}
		return nil
	}
	if err := s.rdb.SRem(ctx, key, otherID).Err(); err != nil {
		return fmt.Errorf("failed to clear %s flag: %w", flag, err)
	}
	return nil
}

func (s *FlagStore) ConversationFlags(ctx context.Context, userID, otherID int64) ([]models.ConversationAction, error) {
	member := strconv.FormatInt(otherID, 10)

	var set []models.ConversationAction
	for _, flag := range []models.ConversationAction{
		models.ActionArchive, models.ActionMute, models.ActionPin,
		models.ActionFavorite, models.ActionList, models.ActionBlock,
	} {
		ok, err := s.rdb.SIsMember(ctx, flagKey(flag, userID), member).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s flag: %w", flag, err)
		}
		if ok {
			set = append(set, flag)
		}
	}
	return set, nil
}
