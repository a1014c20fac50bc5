// forum/threads_test.go
package forum

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestGetThreadBySlugOrID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "finder")
	createTestForum(t, db, "find-forum", "finder")
	thread := createTestThread(t, db, "find-forum", "finder", "find-thread")

	byID, err := db.GetThreadBySlugOrID(ctx, fmt.Sprint(thread.ID))
	if err != nil || byID == nil || byID.ID != thread.ID {
		t.Fatalf("lookup by id = (%v, %v), want thread %d", byID, err, thread.ID)
	}
	bySlug, err := db.GetThreadBySlugOrID(ctx, "FIND-THREAD")
	if err != nil || bySlug == nil || bySlug.ID != thread.ID {
		t.Fatalf("case-insensitive lookup by slug = (%v, %v), want thread %d", bySlug, err, thread.ID)
	}
	missing, err := db.GetThreadBySlugOrID(ctx, "does-not-exist")
	if err != nil || missing != nil {
		t.Fatalf("lookup of missing thread = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestCreateThreadConflictAndCounter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "dupuser")
	createTestForum(t, db, "dup-forum", "dupuser")
	createTestThread(t, db, "dup-forum", "dupuser", "dup-thread")

	_, err := db.CreateThread(ctx, "dup-forum", &Thread{
		Slug:    "DUP-THREAD",
		Author:  "dupuser",
		Title:   "again",
		Message: "again",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate thread slug = %v, want ErrConflict", err)
	}

	forum, err := db.GetForumBySlug(ctx, "dup-forum")
	if err != nil {
		t.Fatalf("GetForumBySlug failed: %v", err)
	}
	// The failed create must not have bumped the counter.
	if forum.Threads != 1 {
		t.Errorf("forum.Threads = %d, want 1", forum.Threads)
	}
}

func TestCreateThreadClientTimestamp(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "tsuser")
	createTestForum(t, db, "ts-forum", "tsuser")

	supplied := Timestamp{time.Date(2019, 7, 8, 9, 10, 11, 120_000_000, time.UTC)}
	thread, err := db.CreateThread(ctx, "ts-forum", &Thread{
		Slug:    "ts-thread",
		Author:  "tsuser",
		Title:   "timed",
		Message: "timed",
		Created: supplied,
	})
	if err != nil {
		t.Fatalf("CreateThread failed: %v", err)
	}
	if !thread.Created.Time.Equal(supplied.Time) {
		t.Errorf("created = %v, want supplied %v", thread.Created.Time, supplied.Time)
	}
}

func TestUpdateThreadPartial(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "upduser")
	createTestForum(t, db, "upd-forum", "upduser")
	thread := createTestThread(t, db, "upd-forum", "upduser", "upd-thread")

	title := "new title"
	updated, err := db.UpdateThread(ctx, thread.Slug, &ThreadUpdate{Title: &title})
	if err != nil {
		t.Fatalf("UpdateThread failed: %v", err)
	}
	if updated.Title != title {
		t.Errorf("title = %q, want %q", updated.Title, title)
	}
	if updated.Message != thread.Message {
		t.Errorf("message changed to %q on a title-only update", updated.Message)
	}

	_, err = db.UpdateThread(ctx, "missing-thread", &ThreadUpdate{Title: &title})
	if !IsNotFound(err) {
		t.Fatalf("UpdateThread on missing thread = %v, want NotFoundError", err)
	}
}

func TestVoteReplacesVoice(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "bob")
	createTestUser(t, db, "carol")
	createTestForum(t, db, "vote-forum", "bob")
	thread := createTestThread(t, db, "vote-forum", "bob", "vote-thread")
	ref := fmt.Sprint(thread.ID)

	after, err := db.Vote(ctx, ref, &Vote{Nickname: "bob", Voice: 1})
	if err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if after.Votes != 1 {
		t.Errorf("votes after +1 = %d, want 1", after.Votes)
	}

	// Re-voting replaces bob's voice; it must not accumulate.
	after, err = db.Vote(ctx, ref, &Vote{Nickname: "BOB", Voice: -1})
	if err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if after.Votes != -1 {
		t.Errorf("votes after re-vote = %d, want -1", after.Votes)
	}

	after, err = db.Vote(ctx, ref, &Vote{Nickname: "carol", Voice: 1})
	if err != nil {
		t.Fatalf("Vote failed: %v", err)
	}
	if after.Votes != 0 {
		t.Errorf("votes after second voter = %d, want 0", after.Votes)
	}

	// The cached sum on the thread row must match.
	stored, err := db.GetThreadBySlugOrID(ctx, ref)
	if err != nil || stored == nil {
		t.Fatalf("GetThreadBySlugOrID failed: %v", err)
	}
	if stored.Votes != 0 {
		t.Errorf("stored votes = %d, want 0", stored.Votes)
	}
}

func TestVoteUnknownUserAndThread(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "voter")
	createTestForum(t, db, "vt-forum", "voter")
	thread := createTestThread(t, db, "vt-forum", "voter", "vt-thread")

	_, err := db.Vote(ctx, thread.Slug, &Vote{Nickname: "ghost", Voice: 1})
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != KindUser {
		t.Fatalf("vote by unknown user = %v, want user NotFoundError", err)
	}

	_, err = db.Vote(ctx, "no-thread", &Vote{Nickname: "voter", Voice: 1})
	if !errors.As(err, &nf) || nf.Kind != KindThread {
		t.Fatalf("vote on unknown thread = %v, want thread NotFoundError", err)
	}

	// Neither failed vote may leave a row behind.
	stored, err := db.GetThreadBySlugOrID(ctx, thread.Slug)
	if err != nil || stored == nil {
		t.Fatalf("GetThreadBySlugOrID failed: %v", err)
	}
	if stored.Votes != 0 {
		t.Errorf("stored votes = %d, want 0", stored.Votes)
	}
}

func TestGetForumThreads(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "lister")
	createTestForum(t, db, "list-forum", "lister")

	// Explicit timestamps: the listing orders by created alone, so
	// back-to-back NOW() inserts could tie.
	newThread := func(slug string, created time.Time) *Thread {
		thread, err := db.CreateThread(ctx, "list-forum", &Thread{
			Slug:    slug,
			Author:  "lister",
			Title:   slug,
			Message: slug,
			Created: Timestamp{created},
		})
		if err != nil {
			t.Fatalf("CreateThread %s failed: %v", slug, err)
		}
		return thread
	}
	first := newThread("list-a", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	second := newThread("list-b", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC))

	threads, err := db.GetForumThreads(ctx, "LIST-FORUM", 0, "", false)
	if err != nil {
		t.Fatalf("GetForumThreads failed: %v", err)
	}
	if len(threads) != 2 || threads[0].ID != first.ID || threads[1].ID != second.ID {
		t.Fatalf("threads = %v, want [%d %d]", threads, first.ID, second.ID)
	}

	threads, err = db.GetForumThreads(ctx, "list-forum", 1, "", true)
	if err != nil {
		t.Fatalf("GetForumThreads desc failed: %v", err)
	}
	if len(threads) != 1 || threads[0].ID != second.ID {
		t.Fatalf("desc limit 1 = %v, want [%d]", threads, second.ID)
	}

	_, err = db.GetForumThreads(ctx, "missing-forum", 0, "", false)
	if !IsNotFound(err) {
		t.Fatalf("GetForumThreads on missing forum = %v, want NotFoundError", err)
	}
}
