// forum/posts.go
package forum

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

const postColumns = `id, parent, author, message, is_edited, forum, thread, created, path`

// Sort modes for ListPosts.
const (
	SortFlat       = "flat"
	SortTree       = "tree"
	SortParentTree = "parent_tree"
)

// CreatePosts creates a batch of posts in the thread as one
// all-or-nothing transaction. For each post, in input order: the
// parent (if any) must already exist in the same thread, the author
// must exist, and the thread's forum must exist; any failure rolls the
// whole batch back with nothing persisted. Author and forum fields are
// rewritten to their canonical stored casing. Ids come from the shared
// post sequence in input order, and every post in the batch shares one
// creation timestamp: the thread's own, unless the first post carries
// an explicit created value, which then applies to the whole batch.
// After the posts persist the forum's post counter grows by the batch
// size. A post may not name a sibling from the same request as its
// parent; only previously committed posts qualify.
func (d *Database) CreatePosts(ctx context.Context, slugOrID string, posts []*Post) ([]*Post, error) {
	thread, err := d.GetThreadBySlugOrID(ctx, slugOrID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, notFound(KindThread, slugOrID)
	}
	if len(posts) == 0 {
		return []*Post{}, nil
	}

	created := thread.Created
	if !posts[0].Created.IsZero() {
		created = posts[0].Created
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	assigned := make(map[int64]bool, len(posts))
	for _, post := range posts {
		post.Thread = thread.ID
		post.Forum = thread.Forum
		post.Created = created
		post.IsEdited = false

		var parentPath Path
		if post.Parent != 0 {
			// Ids from this same request are not valid parents even
			// though the transaction could already see them.
			if assigned[post.Parent] {
				return nil, notFound(KindParent, strconv.FormatInt(post.Parent, 10))
			}
			err := tx.QueryRow(ctx,
				`SELECT path FROM posts WHERE id = $1 AND thread = $2`,
				post.Parent, thread.ID).Scan(&parentPath)
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, notFound(KindParent, strconv.FormatInt(post.Parent, 10))
			}
			if err != nil {
				return nil, err
			}
		}

		var author User
		err = tx.QueryRow(ctx,
			`SELECT nickname, fullname, about, email FROM users WHERE LOWER(nickname) = LOWER($1)`,
			post.Author).Scan(&author.Nickname, &author.Fullname, &author.About, &author.Email)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(KindUser, post.Author)
		}
		if err != nil {
			return nil, err
		}

		var forumSlug string
		err = tx.QueryRow(ctx,
			`SELECT slug FROM forums WHERE LOWER(slug) = LOWER($1)`,
			thread.Forum).Scan(&forumSlug)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound(KindForum, thread.Forum)
		}
		if err != nil {
			return nil, err
		}
		post.Author = author.Nickname
		post.Forum = forumSlug

		if err := tx.QueryRow(ctx, `SELECT nextval('post_id_seq')`).Scan(&post.ID); err != nil {
			return nil, err
		}
		post.Path = parentPath.Extend(post.ID)

		_, err = tx.Exec(ctx,
			`INSERT INTO posts (id, parent, author, message, is_edited, forum, thread, created, path)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			post.ID, post.Parent, post.Author, post.Message, post.IsEdited,
			post.Forum, post.Thread, post.Created, post.Path)
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		if err != nil {
			return nil, err
		}
		assigned[post.ID] = true
	}

	if _, err := tx.Exec(ctx,
		`UPDATE forums SET posts = posts + $1 WHERE LOWER(slug) = LOWER($2)`,
		len(posts), thread.Forum); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return posts, nil
}

// ListPosts returns the thread's posts in one of three orders, with
// keyset pagination (since names a post id and is exclusive):
//
//   - flat: (created, id), chronological with id tiebreak; the cursor
//     compares ids.
//   - tree: full path order, an exact depth-first pre-order walk of
//     the reply forest; the cursor compares paths.
//   - parent_tree: limit and cursor apply to top-level posts only,
//     ordered by id; each selected top-level post is expanded with its
//     whole subtree in ascending path order regardless of desc.
//
// An unrecognized sort value behaves as flat. An existing thread with
// no matching posts yields an empty slice, never a not-found error.
func (d *Database) ListPosts(ctx context.Context, slugOrID, sort string, limit int, since int64, desc bool) ([]Post, error) {
	thread, err := d.GetThreadBySlugOrID(ctx, slugOrID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, notFound(KindThread, slugOrID)
	}

	var sb strings.Builder
	args := []any{thread.ID}

	switch sort {
	case SortTree:
		sb.WriteString(`SELECT ` + postColumns + ` FROM posts WHERE thread = $1`)
		if since > 0 {
			args = append(args, since)
			if desc {
				sb.WriteString(" AND path < (SELECT path FROM posts WHERE id = $2)")
			} else {
				sb.WriteString(" AND path > (SELECT path FROM posts WHERE id = $2)")
			}
		}
		sb.WriteString(" ORDER BY path")
		if desc {
			sb.WriteString(" DESC")
		}
		if limit > 0 {
			args = append(args, limit)
			fmt.Fprintf(&sb, " LIMIT $%d", len(args))
		}
	case SortParentTree:
		sb.WriteString(`SELECT ` + postColumns + ` FROM posts WHERE thread = $1 AND path[1] IN (
            SELECT id FROM posts WHERE thread = $1 AND parent = 0`)
		if since > 0 {
			args = append(args, since)
			if desc {
				sb.WriteString(" AND id < (SELECT path[1] FROM posts WHERE id = $2)")
			} else {
				sb.WriteString(" AND id > (SELECT path[1] FROM posts WHERE id = $2)")
			}
		}
		sb.WriteString(" ORDER BY id")
		if desc {
			sb.WriteString(" DESC")
		}
		if limit > 0 {
			args = append(args, limit)
			fmt.Fprintf(&sb, " LIMIT $%d", len(args))
		}
		// Groups follow the root order; each group stays in ascending
		// path order even when the groups run descending.
		sb.WriteString(")")
		if desc {
			sb.WriteString(" ORDER BY path[1] DESC, path")
		} else {
			sb.WriteString(" ORDER BY path")
		}
	default:
		sb.WriteString(`SELECT ` + postColumns + ` FROM posts WHERE thread = $1`)
		if since > 0 {
			args = append(args, since)
			if desc {
				sb.WriteString(" AND id < $2")
			} else {
				sb.WriteString(" AND id > $2")
			}
		}
		if desc {
			sb.WriteString(" ORDER BY created DESC, id DESC")
		} else {
			sb.WriteString(" ORDER BY created, id")
		}
		if limit > 0 {
			args = append(args, limit)
			fmt.Fprintf(&sb, " LIMIT $%d", len(args))
		}
	}

	rows, err := d.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]Post, 0)
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Parent, &p.Author, &p.Message, &p.IsEdited,
			&p.Forum, &p.Thread, &p.Created, &p.Path); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPostByID returns (nil, nil) when no such post exists.
func (d *Database) GetPostByID(ctx context.Context, id int64) (*Post, error) {
	var p Post
	err := d.pool.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id,
	).Scan(&p.ID, &p.Parent, &p.Author, &p.Message, &p.IsEdited,
		&p.Forum, &p.Thread, &p.Created, &p.Path)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdatePost replaces the post's message and marks it edited. The
// edited flag is only set when the message actually changes; sending
// the current message (or none) is a read.
func (d *Database) UpdatePost(ctx context.Context, id int64, update *PostUpdate) (*Post, error) {
	post, err := d.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, notFound(KindPost, strconv.FormatInt(id, 10))
	}
	if update.Message == nil || *update.Message == post.Message {
		return post, nil
	}
	if _, err := d.pool.Exec(ctx,
		`UPDATE posts SET message = $1, is_edited = TRUE WHERE id = $2`,
		*update.Message, id); err != nil {
		return nil, err
	}
	post.Message = *update.Message
	post.IsEdited = true
	return post, nil
}
