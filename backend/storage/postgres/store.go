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

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/tredditapp/messaging/backend/models"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = `u.id, u.username, u.nickname, COALESCE(u.avatar_url, ''), u.is_admin, u.is_verified`

func scanUser(row interface{ Scan(...any) error }, u *models.UserSummary) error {
	return row.Scan(&u.ID, &u.Username, &u.Nickname, &u.AvatarURL, &u.IsAdmin, &u.IsVerified)
}

// userSummary loads display metadata for one user.
func (s *Store) userSummary(ctx context.Context, userID int64) (models.UserSummary, error) {
	var u models.UserSummary
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users u WHERE u.id = $1`, userID)
	if err := scanUser(row, &u); err != nil {
		return u, errors.Wrap(err, "postgres.userSummary")
	}
	return u, nil
}
