// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tredditapp/messaging/backend/models"
	"github.com/tredditapp/messaging/backend/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.AddUser(models.UserSummary{ID: 10, Username: "alice", Nickname: "Alice"})
	s.AddUser(models.UserSummary{ID: 11, Username: "bob", Nickname: "Bob"})
	s.AddUser(models.UserSummary{ID: 12, Username: "carol", Nickname: "Carol"})
	s.AddUser(models.UserSummary{ID: 13, Username: "dave", Nickname: "Dave"})
	return s
}

func mutualFollow(t *testing.T, s *Store, a, b int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Follow(ctx, a, b))
	require.NoError(t, s.Follow(ctx, b, a))
}

func summaryFor(summaries []models.ConversationSummary, otherID int64) *models.ConversationSummary {
	for i := range summaries {
		if summaries[i].OtherUser.ID == otherID {
			return &summaries[i]
		}
	}
	return nil
}

func TestCanSendDirectMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("mutual follow allows", func(t *testing.T) {
		s := newTestStore(t)
		mutualFollow(t, s, 10, 11)

		ok, err := s.CanSendDirectMessage(ctx, 10, 11)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("one-way follow denies", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.Follow(ctx, 10, 11))

		ok, err := s.CanSendDirectMessage(ctx, 10, 11)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no follow denies", func(t *testing.T) {
		s := newTestStore(t)

		ok, err := s.CanSendDirectMessage(ctx, 12, 13)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("open inbox overrides follow state", func(t *testing.T) {
		s := newTestStore(t)
		require.NoError(t, s.SetMessagingPreference(ctx, 13, true))

		ok, err := s.CanSendDirectMessage(ctx, 12, 13)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unfollow revokes", func(t *testing.T) {
		s := newTestStore(t)
		mutualFollow(t, s, 10, 11)
		require.NoError(t, s.Unfollow(ctx, 11, 10))

		ok, err := s.CanSendDirectMessage(ctx, 10, 11)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAppendDirectMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("returns sender metadata", func(t *testing.T) {
		s := newTestStore(t)
		msg, err := s.AppendDirectMessage(ctx, 10, 11, "hi there")
		require.NoError(t, err)

		assert.Equal(t, int64(10), msg.SenderID)
		assert.Equal(t, int64(11), msg.RecipientID)
		assert.Equal(t, "hi there", msg.Text)
		assert.Equal(t, "alice", msg.Sender.Username)
		assert.Equal(t, "Alice", msg.Sender.Nickname)
	})

	t.Run("empty text rejected", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.AppendDirectMessage(ctx, 10, 11, "   \n\t ")
		assert.ErrorIs(t, err, storage.ErrEmptyMessage)
	})

	t.Run("long text truncated to 1000 characters", func(t *testing.T) {
		s := newTestStore(t)
		msg, err := s.AppendDirectMessage(ctx, 10, 11, strings.Repeat("x", 1500))
		require.NoError(t, err)
		assert.Equal(t, 1000, len([]rune(msg.Text)))
	})

	t.Run("ids are monotonic", func(t *testing.T) {
		s := newTestStore(t)
		first, err := s.AppendDirectMessage(ctx, 10, 11, "one")
		require.NoError(t, err)
		second, err := s.AppendDirectMessage(ctx, 11, 10, "two")
		require.NoError(t, err)
		assert.Greater(t, second.ID, first.ID)
	})
}

func TestConversation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, text := range []string{"a", "b", "c", "d"} {
		_, err := s.AppendDirectMessage(ctx, 10, 11, text)
		require.NoError(t, err)
	}
	_, err := s.AppendDirectMessage(ctx, 10, 12, "unrelated")
	require.NoError(t, err)

	t.Run("oldest to newest", func(t *testing.T) {
		msgs, err := s.Conversation(ctx, 11, 10, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 4)
		assert.Equal(t, "a", msgs[0].Text)
		assert.Equal(t, "d", msgs[3].Text)
	})

	t.Run("cap keeps the newest messages", func(t *testing.T) {
		msgs, err := s.Conversation(ctx, 11, 10, 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "c", msgs[0].Text)
		assert.Equal(t, "d", msgs[1].Text)
	})

	t.Run("other conversations excluded", func(t *testing.T) {
		msgs, err := s.Conversation(ctx, 10, 12, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "unrelated", msgs[0].Text)
	})
}

func TestConversationSummaries(t *testing.T) {
	ctx := context.Background()

	t.Run("one entry per partner with the latest message", func(t *testing.T) {
		s := newTestStore(t)
		for _, text := range []string{"one", "two", "three"} {
			_, err := s.AppendDirectMessage(ctx, 10, 11, text)
			require.NoError(t, err)
		}

		summaries, err := s.ConversationSummaries(ctx, 11, 0)
		require.NoError(t, err)

		sum := summaryFor(summaries, 10)
		require.NotNil(t, sum)
		assert.Equal(t, "three", sum.LastMessage)
		assert.Equal(t, int64(10), sum.LastSenderID)
		assert.Equal(t, int64(3), sum.UnreadCount)
		// Exactly one entry for this partner
		count := 0
		for _, c := range summaries {
			if c.OtherUser.ID == 10 {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("outgoing messages are never unread", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.AppendDirectMessage(ctx, 10, 11, "hello bob")
		require.NoError(t, err)

		summaries, err := s.ConversationSummaries(ctx, 10, 0)
		require.NoError(t, err)
		sum := summaryFor(summaries, 11)
		require.NotNil(t, sum)
		assert.Zero(t, sum.UnreadCount)
	})

	t.Run("sorted by last message time descending", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.AppendDirectMessage(ctx, 11, 10, "older thread")
		require.NoError(t, err)
		_, err = s.AppendDirectMessage(ctx, 12, 10, "newer thread")
		require.NoError(t, err)

		summaries, err := s.ConversationSummaries(ctx, 10, 0)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, int64(12), summaries[0].OtherUser.ID)
		assert.Equal(t, int64(11), summaries[1].OtherUser.ID)
	})

	t.Run("limit truncates", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.AppendDirectMessage(ctx, 11, 10, "x")
		require.NoError(t, err)
		_, err = s.AppendDirectMessage(ctx, 12, 10, "y")
		require.NoError(t, err)

		summaries, err := s.ConversationSummaries(ctx, 10, 1)
		require.NoError(t, err)
		assert.Len(t, summaries, 1)
	})
}

func TestReadWatermarks(t *testing.T) {
	ctx := context.Background()

	t.Run("mark read zeroes unread until a new message", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.AppendDirectMessage(ctx, 11, 10, "ping")
		require.NoError(t, err)

		require.NoError(t, s.MarkConversationRead(ctx, 10, 11))

		summaries, err := s.ConversationSummaries(ctx, 10, 0)
		require.NoError(t, err)
		sum := summaryFor(summaries, 11)
		require.NotNil(t, sum)
		assert.Zero(t, sum.UnreadCount)

		// Marking read again is idempotent
		require.NoError(t, s.MarkConversationRead(ctx, 10, 11))
		summaries, err = s.ConversationSummaries(ctx, 10, 0)
		require.NoError(t, err)
		assert.Zero(t, summaryFor(summaries, 11).UnreadCount)

		_, err = s.AppendDirectMessage(ctx, 11, 10, "ping again")
		require.NoError(t, err)
		summaries, err = s.ConversationSummaries(ctx, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(1), summaryFor(summaries, 11).UnreadCount)
	})

	t.Run("mark all read covers every partner", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.AppendDirectMessage(ctx, 11, 10, "from bob")
		require.NoError(t, err)
		_, err = s.AppendDirectMessage(ctx, 12, 10, "from carol")
		require.NoError(t, err)

		require.NoError(t, s.MarkAllConversationsRead(ctx, 10))

		summaries, err := s.ConversationSummaries(ctx, 10, 0)
		require.NoError(t, err)
		for _, sum := range summaries {
			assert.Zero(t, sum.UnreadCount, "partner %d", sum.OtherUser.ID)
		}
	})

	t.Run("mark unread restores the full incoming count", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.AppendDirectMessage(ctx, 11, 10, "one")
		require.NoError(t, err)
		_, err = s.AppendDirectMessage(ctx, 11, 10, "two")
		require.NoError(t, err)
		require.NoError(t, s.MarkConversationRead(ctx, 10, 11))

		require.NoError(t, s.MarkConversationUnread(ctx, 10, 11))

		summaries, err := s.ConversationSummaries(ctx, 10, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(2), summaryFor(summaries, 11).UnreadCount)
	})
}

// Scenario from the inbox contract: Alice and Bob mutually follow and
// exchange "hi" then "hello".
func TestAliceBobScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mutualFollow(t, s, 10, 11)

	_, err := s.AppendDirectMessage(ctx, 10, 11, "hi")
	require.NoError(t, err)
	_, err = s.AppendDirectMessage(ctx, 11, 10, "hello")
	require.NoError(t, err)

	summaries, err := s.ConversationSummaries(ctx, 10, 0)
	require.NoError(t, err)
	sum := summaryFor(summaries, 11)
	require.NotNil(t, sum)
	assert.Equal(t, "hello", sum.LastMessage)
	assert.Equal(t, int64(11), sum.LastSenderID)
	assert.Equal(t, int64(1), sum.UnreadCount)

	require.NoError(t, s.MarkConversationRead(ctx, 10, 11))
	summaries, err = s.ConversationSummaries(ctx, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, summaryFor(summaries, 11).UnreadCount)
}

func TestConversationStarters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mutualFollow(t, s, 10, 11)
	mutualFollow(t, s, 10, 12)

	// Messaging one partner removes them from starters
	_, err := s.AppendDirectMessage(ctx, 10, 11, "hey")
	require.NoError(t, err)

	starters, err := s.ConversationStarters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, starters, 1)
	assert.Equal(t, int64(12), starters[0].ID)

	// One-way follows never appear
	require.NoError(t, s.Follow(ctx, 10, 13))
	starters, err = s.ConversationStarters(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, starters, 1)
}

func TestConversationFlags(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SetConversationFlag(ctx, 10, 11, models.ActionArchive, true))
	require.NoError(t, s.SetConversationFlag(ctx, 10, 11, models.ActionMute, true))

	flags, err := s.ConversationFlags(ctx, 10, 11)
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.ConversationAction{models.ActionArchive, models.ActionMute}, flags)

	// Disabling is idempotent
	require.NoError(t, s.SetConversationFlag(ctx, 10, 11, models.ActionMute, false))
	require.NoError(t, s.SetConversationFlag(ctx, 10, 11, models.ActionMute, false))

	flags, err = s.ConversationFlags(ctx, 10, 11)
	require.NoError(t, err)
	assert.Equal(t, []models.ConversationAction{models.ActionArchive}, flags)

	// Flags are scoped per conversation partner
	flags, err = s.ConversationFlags(ctx, 10, 12)
	require.NoError(t, err)
	assert.Empty(t, flags)
}

func TestDemoSeed(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	summaries, err := s.ConversationSummaries(ctx, 2, 0)
	require.NoError(t, err)
	require.NotEmpty(t, summaries, "demo store should seed a conversation")
	assert.Equal(t, int64(1), summaries[0].OtherUser.ID)

	starters, err := s.ConversationStarters(ctx, 2)
	require.NoError(t, err)
	require.Len(t, starters, 1)
	assert.Equal(t, "maya", starters[0].Username)
}
