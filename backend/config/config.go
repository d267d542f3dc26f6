// Copyright (C) 2025 Treddit <dev@treddit.app>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisAddr   string
	JWTSecret   string
	JWTIssuer   string
}

// Load reads configuration from the environment, with an optional .env
// file for local development. An empty DatabaseURL selects demo mode.
func Load() Config {
	// Missing .env is the normal case in production
	_ = godotenv.Load()

	return Config{
		Port:        getenv("PORT", "8081"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTIssuer:   getenv("JWT_ISSUER", "treddit"),
	}
}

// DemoMode reports whether the service runs on the in-memory fallback
// store instead of a relational database.
func (c Config) DemoMode() bool {
	return c.DatabaseURL == ""
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
