// forum/users.go
package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// CreateUser inserts a new user. A nickname or email collision maps to
// ErrConflict; the caller re-fetches the clashing users for the
// response body.
func (d *Database) CreateUser(ctx context.Context, user *User) error {
	_, err := d.pool.Exec(ctx,
		`INSERT INTO users (nickname, fullname, about, email) VALUES ($1, $2, $3, $4)`,
		user.Nickname, user.Fullname, user.About, user.Email)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetUserByNickname looks a user up case-insensitively. Returns
// (nil, nil) when no such user exists.
func (d *Database) GetUserByNickname(ctx context.Context, nickname string) (*User, error) {
	return scanUser(d.pool.QueryRow(ctx,
		`SELECT nickname, fullname, about, email FROM users WHERE LOWER(nickname) = LOWER($1)`,
		nickname))
}

// GetUsersByNicknameOrEmail returns every user clashing with the given
// identity fields, for 409 response bodies.
func (d *Database) GetUsersByNicknameOrEmail(ctx context.Context, nickname, email string) ([]User, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT nickname, fullname, about, email FROM users
         WHERE LOWER(nickname) = LOWER($1) OR LOWER(email) = LOWER($2)`,
		nickname, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// UpdateUser applies a partial profile update; nil fields keep their
// stored value. An email collision maps to ErrConflict.
func (d *Database) UpdateUser(ctx context.Context, nickname string, update *UserUpdate) (*User, error) {
	tag, err := d.pool.Exec(ctx,
		`UPDATE users SET fullname = COALESCE($1, fullname), about = COALESCE($2, about),
                email = COALESCE($3, email)
         WHERE LOWER(nickname) = LOWER($4)`,
		update.Fullname, update.About, update.Email, nickname)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound(KindUser, nickname)
	}
	return d.GetUserByNickname(ctx, nickname)
}

// GetForumUsers lists everyone who authored a thread or post in the
// forum, in case-insensitive nickname order with keyset pagination
// (since is exclusive). Signals ForumNotFound for an unknown slug.
func (d *Database) GetForumUsers(ctx context.Context, slug string, limit int, since string, desc bool) ([]User, error) {
	forum, err := d.GetForumBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if forum == nil {
		return nil, notFound(KindForum, slug)
	}

	var sb strings.Builder
	sb.WriteString(
		`SELECT nickname, fullname, about, email FROM (
             SELECT DISTINCT u.nickname, u.fullname, u.about, u.email
             FROM users u JOIN threads t ON t.author = u.nickname WHERE LOWER(t.forum) = LOWER($1)
             UNION
             SELECT DISTINCT u.nickname, u.fullname, u.about, u.email
             FROM users u JOIN posts p ON p.author = u.nickname WHERE LOWER(p.forum) = LOWER($1)
         ) AS forum_users`)
	args := []any{slug}
	if since != "" {
		args = append(args, since)
		if desc {
			sb.WriteString(` WHERE LOWER(nickname COLLATE "ucs_basic") < LOWER($2 COLLATE "ucs_basic")`)
		} else {
			sb.WriteString(` WHERE LOWER(nickname COLLATE "ucs_basic") > LOWER($2 COLLATE "ucs_basic")`)
		}
	}
	sb.WriteString(` ORDER BY LOWER(nickname COLLATE "ucs_basic")`)
	if desc {
		sb.WriteString(" DESC")
	}
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := d.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.Nickname, &user.Fullname, &user.About, &user.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func collectUsers(rows pgx.Rows) ([]User, error) {
	users := make([]User, 0)
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.Nickname, &user.Fullname, &user.About, &user.Email); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
