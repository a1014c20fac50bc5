// forum/db.go
package forum

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Post ids come from one shared sequence so they are monotonic and
// unique across all threads; a path is therefore unambiguous without
// the thread id. Uniqueness of nickname, email and slugs is enforced
// case-insensitively by functional indexes.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    nickname TEXT NOT NULL,
    fullname TEXT NOT NULL DEFAULT '',
    about    TEXT NOT NULL DEFAULT '',
    email    TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_nickname ON users (LOWER(nickname));
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (LOWER(email));

CREATE TABLE IF NOT EXISTS forums (
    slug    TEXT NOT NULL,
    title   TEXT NOT NULL,
    owner   TEXT NOT NULL,
    threads INTEGER NOT NULL DEFAULT 0,
    posts   BIGINT NOT NULL DEFAULT 0
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_forums_slug ON forums (LOWER(slug));

CREATE TABLE IF NOT EXISTS threads (
    id      SERIAL PRIMARY KEY,
    slug    TEXT NOT NULL DEFAULT '',
    forum   TEXT NOT NULL,
    author  TEXT NOT NULL,
    title   TEXT NOT NULL,
    message TEXT NOT NULL,
    votes   INTEGER NOT NULL DEFAULT 0,
    created TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_threads_slug ON threads (LOWER(slug)) WHERE slug <> '';
CREATE INDEX IF NOT EXISTS idx_threads_forum_created ON threads (LOWER(forum), created);

CREATE SEQUENCE IF NOT EXISTS post_id_seq;

CREATE TABLE IF NOT EXISTS posts (
    id        BIGINT PRIMARY KEY,
    parent    BIGINT NOT NULL DEFAULT 0,
    author    TEXT NOT NULL,
    message   TEXT NOT NULL,
    is_edited BOOLEAN NOT NULL DEFAULT FALSE,
    forum     TEXT NOT NULL,
    thread    INTEGER NOT NULL,
    created   TIMESTAMPTZ NOT NULL,
    path      BIGINT[] NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_thread_path ON posts (thread, path);
CREATE INDEX IF NOT EXISTS idx_posts_thread_id ON posts (thread, id);
CREATE INDEX IF NOT EXISTS idx_posts_roots ON posts (thread, id) WHERE parent = 0;
CREATE INDEX IF NOT EXISTS idx_posts_root_path ON posts ((path[1]), path);

CREATE TABLE IF NOT EXISTS votes (
    nickname TEXT NOT NULL,
    thread   INTEGER NOT NULL,
    voice    INTEGER NOT NULL,
    CONSTRAINT votes_nickname_thread_key UNIQUE (nickname, thread)
);
`

type Database struct {
	pool *pgxpool.Pool
}

func NewDatabase(ctx context.Context, connectionString string) (*Database, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Database{pool: pool}, nil
}

func (d *Database) CreateTables(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, schema)
	return err
}

func (d *Database) Close() {
	d.pool.Close()
}

// Status counts every stored entity. The forum counters are caches;
// these are the real counts.
func (d *Database) Status(ctx context.Context) (*Status, error) {
	var st Status
	row := d.pool.QueryRow(ctx, `
        SELECT (SELECT COUNT(*) FROM users),
               (SELECT COUNT(*) FROM forums),
               (SELECT COUNT(*) FROM threads),
               (SELECT COUNT(*) FROM posts)`)
	if err := row.Scan(&st.User, &st.Forum, &st.Thread, &st.Post); err != nil {
		return nil, fmt.Errorf("failed to count entities: %w", err)
	}
	return &st, nil
}

// Clear wipes all entities. The post id sequence is left running;
// ids are never reused.
func (d *Database) Clear(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, "TRUNCATE users, forums, threads, posts, votes")
	return err
}

// isUniqueViolation reports whether err is a Postgres 23505 error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
