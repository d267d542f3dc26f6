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

package main

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tredditapp/messaging/backend/config"
	"github.com/tredditapp/messaging/backend/handlers"
	"github.com/tredditapp/messaging/backend/middleware"
	"github.com/tredditapp/messaging/backend/storage"
	"github.com/tredditapp/messaging/backend/storage/memory"
	"github.com/tredditapp/messaging/backend/storage/postgres"
	redisstore "github.com/tredditapp/messaging/backend/storage/redis"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	cfg := config.Load()
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}

	var (
		messageStore storage.MessageStore
		accessStore  storage.AccessStore
		flagStore    storage.FlagStore
		groupStore   storage.GroupStore
		notifier     storage.Notifier = storage.NopNotifier{}
		db           *sql.DB
	)

	if cfg.DemoMode() {
		// No database configured: in-memory fallback with seeded demo
		// data. Group chat is unavailable here.
		demo := memory.NewStore()
		messageStore, accessStore, flagStore = demo, demo, demo
		log.Info("no DATABASE_URL set, running in demo mode")
	} else {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		store := postgres.NewStore(db)
		if err := store.Migrate(); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
		messageStore, accessStore, groupStore = store, store, store

		if cfg.RedisAddr != "" {
			rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
			flagStore = redisstore.NewFlagStore(rdb)
			notifier = redisstore.NewNotifier(rdb, log)
		} else {
			// Flags degrade to process memory when Redis is absent
			flagStore = memory.NewStore()
			log.Warn("no REDIS_URL set, conversation flags are not durable")
		}
	}

	messageHandler := handlers.NewMessageHandler(messageStore, accessStore, flagStore, notifier, log)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer)

	r := mux.NewRouter()
	r.Use(middleware.CORS)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(authMiddleware)

	// Direct message endpoints
	api.HandleFunc("/dm/send", messageHandler.SendDirectMessage).Methods("POST")
	api.HandleFunc("/dm/inbox", messageHandler.GetInbox).Methods("GET")
	api.HandleFunc("/dm/read-all", messageHandler.MarkAllConversationsRead).Methods("POST")
	api.HandleFunc("/dm/preferences", messageHandler.SetMessagingPreference).Methods("POST")
	api.HandleFunc("/dm/conversation/{userId}", messageHandler.GetConversation).Methods("GET")
	api.HandleFunc("/dm/conversation/{userId}/read", messageHandler.MarkConversationRead).Methods("POST")
	api.HandleFunc("/dm/conversation/{userId}/settings", messageHandler.UpdateConversationSettings).Methods("POST")

	// Group endpoints exist only with a real database
	if groupStore != nil {
		groupHandler := handlers.NewGroupHandler(groupStore, notifier, log)
		api.HandleFunc("/groups", groupHandler.CreateGroup).Methods("POST")
		api.HandleFunc("/groups/{groupId}", groupHandler.GetGroup).Methods("GET")
		api.HandleFunc("/groups/{groupId}", groupHandler.UpdateGroup).Methods("PATCH")
		api.HandleFunc("/groups/{groupId}/messages", groupHandler.GetGroupMessages).Methods("GET")
		api.HandleFunc("/groups/{groupId}/messages", groupHandler.SendGroupMessage).Methods("POST")
		api.HandleFunc("/groups/{groupId}/read", groupHandler.MarkGroupRead).Methods("POST")
	}

	// Health check (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("Database unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	log.Info("messaging server starting",
		zap.String("port", cfg.Port),
		zap.Bool("demo_mode", cfg.DemoMode()))

	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}
