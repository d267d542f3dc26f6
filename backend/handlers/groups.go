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

// GroupHandler serves group conversations. Its routes are only mounted
// when a database is configured; demo mode has no group chat.
type GroupHandler struct {
	store  storage.GroupStore
	notify storage.Notifier
	log    *zap.Logger
}

func NewGroupHandler(store storage.GroupStore, notify storage.Notifier, log *zap.Logger) *GroupHandler {
	return &GroupHandler{store: store, notify: notify, log: log}
}

func (h *GroupHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		Name      string  `json:"name"`
		MemberIDs []int64 `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		badRequest(w, "group name is empty")
		return
	}

	group, err := h.store.CreateGroup(r.Context(), claims.UserID, req.Name, req.MemberIDs)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

func (h *GroupHandler) GetGroup(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	groupID := pathID(r, "groupId")
	if groupID == 0 {
		badRequest(w, "invalid group id")
		return
	}

	group, err := h.store.GroupDetails(r.Context(), claims.UserID, groupID)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	groupID := pathID(r, "groupId")
	if groupID == 0 {
		badRequest(w, "invalid group id")
		return
	}

	var upd models.GroupUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	group, err := h.store.UpdateGroup(r.Context(), claims.UserID, groupID, upd)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (h *GroupHandler) SendGroupMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	groupID := pathID(r, "groupId")
	if groupID == 0 {
		badRequest(w, "invalid group id")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		badRequest(w, "message text is empty")
		return
	}

	msg, err := h.store.AppendGroupMessage(r.Context(), claims.UserID, groupID, req.Text)
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	h.notify.NotifyGroupMessage(r.Context(), msg)

	writeJSON(w, http.StatusCreated, msg)
}

// GetGroupMessages is the polling fetch: messages with id greater than the
// after parameter, oldest first.
func (h *GroupHandler) GetGroupMessages(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	groupID := pathID(r, "groupId")
	if groupID == 0 {
		badRequest(w, "invalid group id")
		return
	}

	msgs, err := h.store.GroupMessagesAfter(r.Context(), claims.UserID, groupID, queryInt(r, "after", 0))
	if err != nil {
		writeError(w, h.log, r, err)
		return
	}
	if msgs == nil {
		msgs = []models.GroupMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"count":    len(msgs),
	})
}

func (h *GroupHandler) MarkGroupRead(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	groupID := pathID(r, "groupId")
	if groupID == 0 {
		badRequest(w, "invalid group id")
		return
	}

	if err := h.store.MarkGroupConversationRead(r.Context(), claims.UserID, groupID); err != nil {
		writeError(w, h.log, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "marked_read"})
}
