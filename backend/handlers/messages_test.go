// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tredditapp/messaging/backend/middleware"
	"github.com/tredditapp/messaging/backend/models"
	"github.com/tredditapp/messaging/backend/storage"
	"github.com/tredditapp/messaging/backend/storage/memory"
)

type testEnv struct {
	store  *memory.Store
	router *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	store.AddUser(models.UserSummary{ID: 10, Username: "alice", Nickname: "Alice"})
	store.AddUser(models.UserSummary{ID: 11, Username: "bob", Nickname: "Bob"})

	h := NewMessageHandler(store, store, store, storage.NopNotifier{}, zap.NewNop())

	r := mux.NewRouter()
	r.HandleFunc("/api/dm/send", h.SendDirectMessage).Methods("POST")
	r.HandleFunc("/api/dm/inbox", h.GetInbox).Methods("GET")
	r.HandleFunc("/api/dm/read-all", h.MarkAllConversationsRead).Methods("POST")
	r.HandleFunc("/api/dm/preferences", h.SetMessagingPreference).Methods("POST")
	r.HandleFunc("/api/dm/conversation/{userId}", h.GetConversation).Methods("GET")
	r.HandleFunc("/api/dm/conversation/{userId}/read", h.MarkConversationRead).Methods("POST")
	r.HandleFunc("/api/dm/conversation/{userId}/settings", h.UpdateConversationSettings).Methods("POST")

	return &testEnv{store: store, router: r}
}

// do runs a request as the given user, bypassing token parsing the same
// way the auth middleware would have populated the context.
func (e *testEnv) do(t *testing.T, userID int64, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	claims := &middleware.Claims{UserID: userID, Username: "tester"}
	req = req.WithContext(middleware.WithClaims(req.Context(), claims))

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) mutualFollow(t *testing.T, a, b int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.store.Follow(ctx, a, b))
	require.NoError(t, e.store.Follow(ctx, b, a))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestSendDirectMessage(t *testing.T) {
	t.Run("created with sender metadata", func(t *testing.T) {
		env := newTestEnv(t)
		env.mutualFollow(t, 10, 11)

		rec := env.do(t, 10, "POST", "/api/dm/send",
			map[string]any{"recipient_id": 11, "text": "hi bob"})
		require.Equal(t, http.StatusCreated, rec.Code)

		var msg models.DirectMessage
		decodeBody(t, rec, &msg)
		assert.Equal(t, int64(10), msg.SenderID)
		assert.Equal(t, int64(11), msg.RecipientID)
		assert.Equal(t, "hi bob", msg.Text)
		assert.Equal(t, "alice", msg.Sender.Username)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, 10, "POST", "/api/dm/send",
			map[string]any{"recipient_id": 0, "text": "hi"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("self message", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, 10, "POST", "/api/dm/send",
			map[string]any{"recipient_id": 10, "text": "hi me"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty text", func(t *testing.T) {
		env := newTestEnv(t)
		env.mutualFollow(t, 10, 11)
		rec := env.do(t, 10, "POST", "/api/dm/send",
			map[string]any{"recipient_id": 11, "text": "   "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("access denied without mutual follow", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, 10, "POST", "/api/dm/send",
			map[string]any{"recipient_id": 11, "text": "hi"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("open inbox preference admits strangers", func(t *testing.T) {
		env := newTestEnv(t)

		rec := env.do(t, 11, "POST", "/api/dm/preferences",
			map[string]any{"allow_from_anyone": true})
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, 10, "POST", "/api/dm/send",
			map[string]any{"recipient_id": 11, "text": "hello stranger"})
		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestInboxFlow(t *testing.T) {
	env := newTestEnv(t)
	env.mutualFollow(t, 10, 11)

	rec := env.do(t, 10, "POST", "/api/dm/send",
		map[string]any{"recipient_id": 11, "text": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = env.do(t, 11, "POST", "/api/dm/send",
		map[string]any{"recipient_id": 10, "text": "hello"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var inbox struct {
		Conversations []models.ConversationSummary `json:"conversations"`
		Starters      []models.UserSummary         `json:"starters"`
	}
	rec = env.do(t, 10, "GET", "/api/dm/inbox", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &inbox)

	require.Len(t, inbox.Conversations, 1)
	assert.Equal(t, "hello", inbox.Conversations[0].LastMessage)
	assert.Equal(t, int64(11), inbox.Conversations[0].LastSenderID)
	assert.Equal(t, int64(1), inbox.Conversations[0].UnreadCount)

	rec = env.do(t, 10, "POST", "/api/dm/conversation/11/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, 10, "GET", "/api/dm/inbox", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &inbox)
	require.Len(t, inbox.Conversations, 1)
	assert.Zero(t, inbox.Conversations[0].UnreadCount)

	var convo struct {
		Messages []models.DirectMessage `json:"messages"`
		Count    int                    `json:"count"`
	}
	rec = env.do(t, 10, "GET", "/api/dm/conversation/11", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &convo)
	require.Equal(t, 2, convo.Count)
	assert.Equal(t, "hi", convo.Messages[0].Text)
	assert.Equal(t, "hello", convo.Messages[1].Text)
}

func TestConversationSettings(t *testing.T) {
	t.Run("unknown action rejected", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, 10, "POST", "/api/dm/conversation/11/settings",
			map[string]any{"action": "explode", "enabled": true})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("flag toggles round-trip", func(t *testing.T) {
		env := newTestEnv(t)
		rec := env.do(t, 10, "POST", "/api/dm/conversation/11/settings",
			map[string]any{"action": "archive", "enabled": true})
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Flags []models.ConversationAction `json:"flags"`
		}
		decodeBody(t, rec, &resp)
		assert.Equal(t, []models.ConversationAction{models.ActionArchive}, resp.Flags)

		rec = env.do(t, 10, "POST", "/api/dm/conversation/11/settings",
			map[string]any{"action": "archive", "enabled": false})
		require.Equal(t, http.StatusOK, rec.Code)
		decodeBody(t, rec, &resp)
		assert.Empty(t, resp.Flags)
	})

	t.Run("markUnread restores unread count", func(t *testing.T) {
		env := newTestEnv(t)
		env.mutualFollow(t, 10, 11)

		rec := env.do(t, 11, "POST", "/api/dm/send",
			map[string]any{"recipient_id": 10, "text": "ping"})
		require.Equal(t, http.StatusCreated, rec.Code)
		rec = env.do(t, 10, "POST", "/api/dm/conversation/11/read", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = env.do(t, 10, "POST", "/api/dm/conversation/11/settings",
			map[string]any{"action": "markUnread"})
		require.Equal(t, http.StatusOK, rec.Code)

		var inbox struct {
			Conversations []models.ConversationSummary `json:"conversations"`
		}
		rec = env.do(t, 10, "GET", "/api/dm/inbox", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		decodeBody(t, rec, &inbox)
		require.Len(t, inbox.Conversations, 1)
		assert.Equal(t, int64(1), inbox.Conversations[0].UnreadCount)
	})
}

func TestMarkAllRead(t *testing.T) {
	env := newTestEnv(t)
	env.mutualFollow(t, 10, 11)

	rec := env.do(t, 11, "POST", "/api/dm/send",
		map[string]any{"recipient_id": 10, "text": "one"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, 10, "POST", "/api/dm/read-all", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var inbox struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	rec = env.do(t, 10, "GET", "/api/dm/inbox", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &inbox)
	for _, c := range inbox.Conversations {
		assert.Zero(t, c.UnreadCount)
	}
}
