// forum/models.go
package forum

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// wireTimeFormat is the timestamp layout used everywhere on the wire:
// UTC, millisecond precision, literal Z.
const wireTimeFormat = "2006-01-02T15:04:05.000Z"

// Timestamp wraps time.Time so entity timestamps always marshal with
// wireTimeFormat. Input is accepted leniently (any RFC3339 offset or
// precision) and normalized to UTC.
type Timestamp struct {
	time.Time
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Time.UTC().Format(wireTimeFormat) + `"`), nil
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		t.Time = time.Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid timestamp %s", s)
	}
	parsed, err := time.Parse(time.RFC3339Nano, s[1:len(s)-1])
	if err != nil {
		return err
	}
	t.Time = parsed.UTC()
	return nil
}

func (t *Timestamp) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return err
		}
		t.Time = parsed.UTC()
		return nil
	}
	return fmt.Errorf("cannot scan %T into Timestamp", src)
}

func (t Timestamp) Value() (driver.Value, error) {
	return t.Time, nil
}

// User is a forum member. Nickname is the immutable identity; lookups
// on it and on email are case-insensitive.
type User struct {
	Nickname string `json:"nickname"`
	Fullname string `json:"fullname"`
	About    string `json:"about,omitempty"`
	Email    string `json:"email"`
}

// UserUpdate carries a partial profile update. Nil fields keep their
// current value.
type UserUpdate struct {
	Fullname *string `json:"fullname"`
	About    *string `json:"about"`
	Email    *string `json:"email"`
}

// Forum caches its thread and post counts; both are maintained by
// explicit increments colocated with the writes that justify them and
// are never recomputed by scanning.
type Forum struct {
	Title   string `json:"title"`
	User    string `json:"user"`
	Slug    string `json:"slug"`
	Posts   int64  `json:"posts"`
	Threads int32  `json:"threads"`
}

// Thread caches the vote sum so listings never aggregate the votes
// table. Slug is optional; an empty slug means the thread is reachable
// by id only.
type Thread struct {
	ID      int32     `json:"id"`
	Title   string    `json:"title"`
	Author  string    `json:"author"`
	Forum   string    `json:"forum"`
	Message string    `json:"message"`
	Votes   int32     `json:"votes"`
	Slug    string    `json:"slug,omitempty"`
	Created Timestamp `json:"created"`
}

// ThreadUpdate carries a partial thread update. Nil fields keep their
// current value.
type ThreadUpdate struct {
	Title   *string `json:"title"`
	Message *string `json:"message"`
}

// Post is one message in a thread's reply tree. Parent 0 marks a
// top-level post. Path is the materialized ancestor chain (root id
// first, own id last); it never leaves the storage layer.
type Post struct {
	ID       int64     `json:"id"`
	Parent   int64     `json:"parent"`
	Author   string    `json:"author"`
	Message  string    `json:"message"`
	IsEdited bool      `json:"isEdited"`
	Forum    string    `json:"forum"`
	Thread   int32     `json:"thread"`
	Created  Timestamp `json:"created"`
	Path     Path      `json:"-"`
}

// PostUpdate carries a message edit. A nil message is a no-op.
type PostUpdate struct {
	Message *string `json:"message"`
}

// PostFull is a post with its related entities, populated on demand.
type PostFull struct {
	Post   *Post   `json:"post"`
	Author *User   `json:"author,omitempty"`
	Thread *Thread `json:"thread,omitempty"`
	Forum  *Forum  `json:"forum,omitempty"`
}

// Vote is one user's voice on a thread, +1 or -1. Re-voting replaces
// the previous voice.
type Vote struct {
	Nickname string `json:"nickname"`
	Voice    int32  `json:"voice"`
}

// Status reports global entity counts.
type Status struct {
	User   int32 `json:"user"`
	Forum  int32 `json:"forum"`
	Thread int32 `json:"thread"`
	Post   int64 `json:"post"`
}

// Error is the JSON body returned with every non-2xx response.
type Error struct {
	Message string `json:"message"`
}
