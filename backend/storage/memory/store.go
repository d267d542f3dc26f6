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

// Package memory is the demo-mode store used when no database is
// configured. It satisfies the same read/write contracts as the postgres
// store for direct messages, the access gate, the summarizer and
// conversation flags; group chat is not available in demo mode. Nothing
// survives a restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tredditapp/messaging/backend/models"
	"github.com/tredditapp/messaging/backend/storage"
)

type followKey struct {
	follower int64
	followee int64
}

type pairKey struct {
	user  int64
	other int64
}

type flagKey struct {
	user int64
	flag models.ConversationAction
}

// Store is constructed once at process start and passed by reference;
// there is no ambient global instance.
type Store struct {
	mu         sync.Mutex
	users      map[int64]models.UserSummary
	follows    map[followKey]bool
	prefs      map[int64]bool
	messages   []models.DirectMessage
	nextID     int64
	watermarks map[pairKey]time.Time
	flags      map[flagKey]map[int64]bool
}

func NewStore() *Store {
	s := &Store{
		users:      make(map[int64]models.UserSummary),
		follows:    make(map[followKey]bool),
		prefs:      make(map[int64]bool),
		nextID:     1,
		watermarks: make(map[pairKey]time.Time),
		flags:      make(map[flagKey]map[int64]bool),
	}
	s.seed()
	return s
}

// seed installs the fixed demo accounts and one starter conversation so a
// trial instance is not empty on first load.
func (s *Store) seed() {
	demoUsers := []models.UserSummary{
		{ID: 1, Username: "treddit", Nickname: "Treddit", IsAdmin: true, IsVerified: true},
		{ID: 2, Username: "demo", Nickname: "Demo User"},
		{ID: 3, Username: "maya", Nickname: "Maya", IsVerified: true},
	}
	for _, u := range demoUsers {
		s.users[u.ID] = u
	}
	// Mutual follows between the demo user and the others
	for _, id := range []int64{1, 3} {
		s.follows[followKey{2, id}] = true
		s.follows[followKey{id, 2}] = true
	}

	base := time.Now().Add(-time.Hour)
	s.insert(1, 2, "Welcome to Treddit! This is your demo inbox.", base)
	s.insert(2, 1, "Thanks, just looking around.", base.Add(time.Minute))
	s.insert(1, 2, "Messages here live in memory only, nothing is saved.", base.Add(2*time.Minute))
}

// AddUser registers a user for gating and display metadata. Demo seeding
// and tests use it; there is no account system in demo mode.
func (s *Store) AddUser(u models.UserSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *Store) insert(senderID, recipientID int64, text string, at time.Time) models.DirectMessage {
	m := models.DirectMessage{
		ID:          s.nextID,
		SenderID:    senderID,
		RecipientID: recipientID,
		Text:        text,
		CreatedAt:   at,
		Sender:      s.users[senderID],
	}
	s.nextID++
	s.messages = append(s.messages, m)
	return m
}

func (s *Store) AppendDirectMessage(ctx context.Context, senderID, recipientID int64, text string) (*models.DirectMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, storage.ErrEmptyMessage
	}
	text = models.TruncateMessage(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[senderID]; !ok {
		return nil, storage.ErrUserNotFound
	}
	m := s.insert(senderID, recipientID, text, time.Now())
	return &m, nil
}

func (s *Store) Conversation(ctx context.Context, viewerID, otherID int64, limit int) ([]models.DirectMessage, error) {
	limit = storage.ClampLimit(limit, storage.DefaultConversationLimit)

	s.mu.Lock()
	defer s.mu.Unlock()

	var msgs []models.DirectMessage
	for _, m := range s.messages {
		if (m.SenderID == viewerID && m.RecipientID == otherID) ||
			(m.SenderID == otherID && m.RecipientID == viewerID) {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (s *Store) ConversationSummaries(ctx context.Context, viewerID int64, limit int) ([]models.ConversationSummary, error) {
	limit = storage.ClampLimit(limit, storage.DefaultSummaryLimit)

	s.mu.Lock()
	defer s.mu.Unlock()

	latest := make(map[int64]models.DirectMessage)
	unread := make(map[int64]int64)
	for _, m := range s.messages {
		var other int64
		switch {
		case m.SenderID == viewerID:
			other = m.RecipientID
		case m.RecipientID == viewerID:
			other = m.SenderID
		default:
			continue
		}

		last, ok := latest[other]
		if !ok || m.CreatedAt.After(last.CreatedAt) ||
			(m.CreatedAt.Equal(last.CreatedAt) && m.ID > last.ID) {
			latest[other] = m
		}
		if m.RecipientID == viewerID && m.CreatedAt.After(s.watermarks[pairKey{viewerID, other}]) {
			unread[other]++
		}
	}

	summaries := make([]models.ConversationSummary, 0, len(latest))
	for other, m := range latest {
		summaries = append(summaries, models.ConversationSummary{
			OtherUser:     s.users[other],
			LastMessage:   m.Text,
			LastSenderID:  m.SenderID,
			LastMessageAt: m.CreatedAt,
			UnreadCount:   unread[other],
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *Store) ConversationStarters(ctx context.Context, viewerID int64) ([]models.UserSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	messaged := make(map[int64]bool)
	for _, m := range s.messages {
		if m.SenderID == viewerID {
			messaged[m.RecipientID] = true
		}
		if m.RecipientID == viewerID {
			messaged[m.SenderID] = true
		}
	}

	var users []models.UserSummary
	for id, u := range s.users {
		if id == viewerID || messaged[id] {
			continue
		}
		if s.follows[followKey{viewerID, id}] && s.follows[followKey{id, viewerID}] {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *Store) MarkConversationRead(ctx context.Context, viewerID, otherID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[pairKey{viewerID, otherID}] = time.Now()
	return nil
}

func (s *Store) MarkAllConversationsRead(ctx context.Context, viewerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, m := range s.messages {
		switch viewerID {
		case m.SenderID:
			s.watermarks[pairKey{viewerID, m.RecipientID}] = now
		case m.RecipientID:
			s.watermarks[pairKey{viewerID, m.SenderID}] = now
		}
	}
	return nil
}

func (s *Store) MarkConversationUnread(ctx context.Context, viewerID, otherID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watermarks, pairKey{viewerID, otherID})
	return nil
}

func (s *Store) CanSendDirectMessage(ctx context.Context, senderID, recipientID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs[recipientID] {
		return true, nil
	}
	return s.follows[followKey{senderID, recipientID}] &&
		s.follows[followKey{recipientID, senderID}], nil
}

func (s *Store) SetMessagingPreference(ctx context.Context, userID int64, allowFromAnyone bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = allowFromAnyone
	return nil
}

func (s *Store) Follow(ctx context.Context, followerID, followeeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.follows[followKey{followerID, followeeID}] = true
	return nil
}

func (s *Store) Unfollow(ctx context.Context, followerID, followeeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.follows, followKey{followerID, followeeID})
	return nil
}

func (s *Store) SetConversationFlag(ctx context.Context, userID, otherID int64, flag models.ConversationAction, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := flagKey{userID, flag}
	if s.flags[k] == nil {
		s.flags[k] = make(map[int64]bool)
	}
	if enabled {
		s.flags[k][otherID] = true
	} else {
		delete(s.flags[k], otherID)
	}
	return nil
}

func (s *Store) ConversationFlags(ctx context.Context, userID, otherID int64) ([]models.ConversationAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var set []models.ConversationAction
	for _, flag := range []models.ConversationAction{
		models.ActionArchive, models.ActionMute, models.ActionPin,
		models.ActionFavorite, models.ActionList, models.ActionBlock,
	} {
		if s.flags[flagKey{userID, flag}][otherID] {
			set = append(set, flag)
		}
	}
	return set, nil
}
