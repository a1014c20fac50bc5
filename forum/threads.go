// forum/threads.go
package forum

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// CreateThread inserts a thread into the forum and bumps the forum's
// thread counter in the same transaction. Author and forum references
// are rewritten to their canonical stored casing. A slug collision
// maps to ErrConflict.
func (d *Database) CreateThread(ctx context.Context, forumSlug string, thread *Thread) (*Thread, error) {
	author, err := d.GetUserByNickname(ctx, thread.Author)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, notFound(KindUser, thread.Author)
	}
	forum, err := d.GetForumBySlug(ctx, forumSlug)
	if err != nil {
		return nil, err
	}
	if forum == nil {
		return nil, notFound(KindForum, forumSlug)
	}
	thread.Author = author.Nickname
	thread.Forum = forum.Slug

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var created any
	if !thread.Created.IsZero() {
		created = thread.Created.Time
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO threads (slug, forum, author, title, message, created)
         VALUES ($1, $2, $3, $4, $5, COALESCE($6::TIMESTAMPTZ, NOW()))
         RETURNING id, created`,
		thread.Slug, thread.Forum, thread.Author, thread.Title, thread.Message, created,
	).Scan(&thread.ID, &thread.Created)
	if isUniqueViolation(err) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE forums SET threads = threads + 1 WHERE LOWER(slug) = LOWER($1)`,
		thread.Forum); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return thread, nil
}

// GetThreadBySlugOrID resolves a thread reference. Purely numeric
// input is treated as an id; anything else as a slug. Returns
// (nil, nil) when no such thread exists.
func (d *Database) GetThreadBySlugOrID(ctx context.Context, slugOrID string) (*Thread, error) {
	query := `SELECT id, slug, forum, author, title, message, votes, created FROM threads `
	var arg any
	if id, err := strconv.Atoi(slugOrID); err == nil {
		query += `WHERE id = $1`
		arg = id
	} else {
		query += `WHERE LOWER(slug) = LOWER($1)`
		arg = slugOrID
	}
	return scanThread(d.pool.QueryRow(ctx, query, arg))
}

// UpdateThread applies a partial update; nil fields keep their stored
// value. Signals ThreadNotFound for an unknown reference.
func (d *Database) UpdateThread(ctx context.Context, slugOrID string, update *ThreadUpdate) (*Thread, error) {
	query := `UPDATE threads SET title = COALESCE($1, title), message = COALESCE($2, message) `
	var arg any
	if id, err := strconv.Atoi(slugOrID); err == nil {
		query += `WHERE id = $3`
		arg = id
	} else {
		query += `WHERE LOWER(slug) = LOWER($3)`
		arg = slugOrID
	}
	tag, err := d.pool.Exec(ctx, query, update.Title, update.Message, arg)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, notFound(KindThread, slugOrID)
	}
	return d.GetThreadBySlugOrID(ctx, slugOrID)
}

// GetForumThreads lists the forum's threads in creation order. The
// since cursor is inclusive on the created timestamp, matching the
// thread-listing contract (created is client-suppliable, so ties are
// expected). Signals ForumNotFound for an unknown slug.
func (d *Database) GetForumThreads(ctx context.Context, slug string, limit int, since string, desc bool) ([]Thread, error) {
	forum, err := d.GetForumBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if forum == nil {
		return nil, notFound(KindForum, slug)
	}

	var sb strings.Builder
	sb.WriteString(
		`SELECT id, slug, forum, author, title, message, votes, created
         FROM threads WHERE LOWER(forum) = LOWER($1)`)
	args := []any{slug}
	if since != "" {
		args = append(args, since)
		if desc {
			sb.WriteString(" AND created <= $2::TIMESTAMPTZ")
		} else {
			sb.WriteString(" AND created >= $2::TIMESTAMPTZ")
		}
	}
	sb.WriteString(" ORDER BY created")
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

	threads := make([]Thread, 0)
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.Slug, &t.Forum, &t.Author, &t.Title, &t.Message,
			&t.Votes, &t.Created); err != nil {
			return nil, err
		}
		threads = append(threads, t)
	}
	return threads, rows.Err()
}

// Vote upserts the user's voice on the thread and recomputes the
// cached vote sum, all in one transaction. Re-voting replaces the
// previous voice; the sum is SUM(voice), never an accumulation.
func (d *Database) Vote(ctx context.Context, slugOrID string, vote *Vote) (*Thread, error) {
	thread, err := d.GetThreadBySlugOrID(ctx, slugOrID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, notFound(KindThread, slugOrID)
	}
	user, err := d.GetUserByNickname(ctx, vote.Nickname)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, notFound(KindUser, vote.Nickname)
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO votes (nickname, thread, voice) VALUES ($1, $2, $3)
         ON CONFLICT (nickname, thread) DO UPDATE SET voice = EXCLUDED.voice`,
		user.Nickname, thread.ID, vote.Voice); err != nil {
		return nil, err
	}

	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(voice), 0) FROM votes WHERE thread = $1`,
		thread.ID).Scan(&thread.Votes); err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE threads SET votes = $1 WHERE id = $2`,
		thread.Votes, thread.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return thread, nil
}

func scanThread(row pgx.Row) (*Thread, error) {
	var t Thread
	err := row.Scan(&t.ID, &t.Slug, &t.Forum, &t.Author, &t.Title, &t.Message,
		&t.Votes, &t.Created)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
