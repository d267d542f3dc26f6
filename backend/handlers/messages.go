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

package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tredditapp/messaging/backend/middleware"
	"github.com/tredditapp/messaging/backend/models"
	"github.com/tredditapp/messaging/backend/storage"
)

type MessageHandler struct {
	store  storage.MessageStore
	access storage.AccessStore
	flags  storage.FlagStore
	notify storage.Notifier
	log    *zap.Logger
}

func NewMessageHandler(store storage.MessageStore, access storage.AccessStore, flags storage.FlagStore, notify storage.Notifier, log *zap.Logger) *MessageHandler {
	return &MessageHandler{store: store, access: access, flags: flags, notify: notify, log: log}
}

// SendDirectMessage validates input, consults the access gate, then appends
// the message. Gate and append are separate sequential calls; the gate is
// re-evaluated on every send.
func (h *MessageHandler) SendDirectMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		RecipientID int64  `json:"recipient_id"`
		Text        string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if req.RecipientID <= 0 {
		badRequest(w, "invalid recipient")
		return
	}
	if req.RecipientID == claims.UserID {
		badRequest(w, "cannot message yourself")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "message text is empty")
		return
	}

	allowed, err := h.access.CanSendDirectMessage(r.Context(), claims.UserID, req.RecipientID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if !allowed {
		forbidden(w, "recipient does not accept messages from this account")
		return
	}

	msg, err := h.store.AppendDirectMessage(r.Context(), claims.UserID, req.RecipientID, req.Text)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	h.notify.NotifyDirectMessage(r.Context(), msg)

	writeJSON(w, http.StatusCreated, msg)
}

// GetConversation returns the messages between the caller and {userId},
// oldest first.
func (h *MessageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	otherID := pathID(r, "userId")
	if otherID == 0 {
		badRequest(w, "invalid user id")
		return
	}

	msgs, err := h.store.Conversation(r.Context(), claims.UserID, otherID, int(queryInt(r, "limit", 0)))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.DirectMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"count":    len(msgs),
	})
}

// GetInbox returns the per-partner conversation summaries plus the separate
// conversation-starters list.
func (h *MessageHandler) GetInbox(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	summaries, err := h.store.ConversationSummaries(r.Context(), claims.UserID, int(queryInt(r, "limit", 0)))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	starters, err := h.store.ConversationStarters(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}
	if starters == nil {
		starters = []models.UserSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": summaries,
		"starters":      starters,
	})
}

func (h *MessageHandler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	otherID := pathID(r, "userId")
	if otherID == 0 {
		badRequest(w, "invalid user id")
		return
	}

	if err := h.store.MarkConversationRead(r.Context(), claims.UserID, otherID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "marked_read"})
}

func (h *MessageHandler) MarkAllConversationsRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.store.MarkAllConversationsRead(r.Context(), claims.UserID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "marked_read"})
}

// UpdateConversationSettings dispatches an action from the closed set
// {archive, mute, pin, favorite, list, block, markUnread}. Flag actions
// toggle per-conversation flags; markUnread clears the read watermark and
// ignores the enabled field.
func (h *MessageHandler) UpdateConversationSettings(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	otherID := pathID(r, "userId")
	if otherID == 0 {
		badRequest(w, "invalid user id")
		return
	}

	var req struct {
		Action  string `json:"action"`
		Enabled bool   `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	action, ok := models.ParseConversationAction(req.Action)
	if !ok {
		badRequest(w, "unsupported action")
		return
	}

	var err error
	if action.IsFlag() {
		err = h.flags.SetConversationFlag(r.Context(), claims.UserID, otherID, action, req.Enabled)
	} else {
		err = h.store.MarkConversationUnread(r.Context(), claims.UserID, otherID)
	}
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}

	flags, err := h.flags.ConversationFlags(r.Context(), claims.UserID, otherID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if flags == nil {
		flags = []models.ConversationAction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "updated",
		"flags":  flags,
	})
}

// SetMessagingPreference upserts the caller's open-inbox opt-in.
func (h *MessageHandler) SetMessagingPreference(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		AllowFromAnyone bool `json:"allow_from_anyone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	if err := h.access.SetMessagingPreference(r.Context(), claims.UserID, req.AllowFromAnyone); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessagingPreference{
		UserID:          claims.UserID,
		AllowFromAnyone: req.AllowFromAnyone,
	})
}
