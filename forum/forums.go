// forum/forums.go
package forum

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// CreateForum inserts a new forum. The owner must exist; the stored
// owner field is frozen to the user's canonical-cased nickname. A slug
// collision maps to ErrConflict.
func (d *Database) CreateForum(ctx context.Context, forum *Forum) (*Forum, error) {
	owner, err := d.GetUserByNickname(ctx, forum.User)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, notFound(KindUser, forum.User)
	}
	forum.User = owner.Nickname

	_, err = d.pool.Exec(ctx,
		`INSERT INTO forums (slug, title, owner) VALUES ($1, $2, $3)`,
		forum.Slug, forum.Title, forum.User)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return forum, nil
}

// GetForumBySlug looks a forum up case-insensitively. Returns
// (nil, nil) when no such forum exists.
func (d *Database) GetForumBySlug(ctx context.Context, slug string) (*Forum, error) {
	var forum Forum
	err := d.pool.QueryRow(ctx,
		`SELECT slug, title, owner, threads, posts FROM forums WHERE LOWER(slug) = LOWER($1)`,
		slug).Scan(&forum.Slug, &forum.Title, &forum.User, &forum.Threads, &forum.Posts)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &forum, nil
}
