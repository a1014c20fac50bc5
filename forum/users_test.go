// forum/users_test.go
package forum

import (
	"context"
	"errors"
	"testing"
)

func TestCreateUserConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "original")

	err := db.CreateUser(ctx, &User{
		Nickname: "ORIGINAL",
		Fullname: "Impostor",
		Email:    "someone-else@example.com",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate nickname = %v, want ErrConflict", err)
	}

	// The clash list drives the 409 response body.
	clashing, err := db.GetUsersByNicknameOrEmail(ctx, "ORIGINAL", "someone-else@example.com")
	if err != nil {
		t.Fatalf("GetUsersByNicknameOrEmail failed: %v", err)
	}
	if len(clashing) != 1 || clashing[0].Nickname != "original" {
		t.Fatalf("clashing users = %v, want [original]", clashing)
	}
}

func TestGetUserByNicknameCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "MixedCase")

	user, err := db.GetUserByNickname(ctx, "mixedcase")
	if err != nil || user == nil {
		t.Fatalf("lookup = (%v, %v), want the user", user, err)
	}
	if user.Nickname != "MixedCase" {
		t.Errorf("nickname = %q, want stored casing %q", user.Nickname, "MixedCase")
	}

	missing, err := db.GetUserByNickname(ctx, "nobody")
	if err != nil || missing != nil {
		t.Fatalf("missing user = (%v, %v), want (nil, nil)", missing, err)
	}
}

func TestUpdateUserPartial(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	before := createTestUser(t, db, "mutable")

	about := "updated about"
	updated, err := db.UpdateUser(ctx, "MUTABLE", &UserUpdate{About: &about})
	if err != nil {
		t.Fatalf("UpdateUser failed: %v", err)
	}
	if updated.About != about {
		t.Errorf("about = %q, want %q", updated.About, about)
	}
	if updated.Email != before.Email || updated.Fullname != before.Fullname {
		t.Errorf("untouched fields changed: %+v", updated)
	}

	_, err = db.UpdateUser(ctx, "nobody", &UserUpdate{About: &about})
	if !IsNotFound(err) {
		t.Fatalf("UpdateUser on missing user = %v, want NotFoundError", err)
	}
}

func TestUpdateUserEmailConflict(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "holder")
	createTestUser(t, db, "wanter")

	taken := "holder@example.com"
	_, err := db.UpdateUser(ctx, "wanter", &UserUpdate{Email: &taken})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("update to taken email = %v, want ErrConflict", err)
	}
}

func TestGetForumUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	createTestUser(t, db, "alice")
	createTestUser(t, db, "Bob")
	createTestUser(t, db, "zoe")
	createTestForum(t, db, "people-forum", "alice")
	thread := createTestThread(t, db, "people-forum", "Bob", "people-thread")
	createTestPost(t, db, thread, "zoe", 0)

	// alice owns the forum but authored nothing in it, so she is not
	// listed. Ordering is case-insensitive by nickname.
	users, err := db.GetForumUsers(ctx, "people-forum", 0, "", false)
	if err != nil {
		t.Fatalf("GetForumUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].Nickname != "Bob" || users[1].Nickname != "zoe" {
		t.Fatalf("forum users = %v, want [Bob zoe]", users)
	}

	users, err = db.GetForumUsers(ctx, "people-forum", 0, "bob", false)
	if err != nil {
		t.Fatalf("GetForumUsers with since failed: %v", err)
	}
	if len(users) != 1 || users[0].Nickname != "zoe" {
		t.Fatalf("forum users since bob = %v, want [zoe]", users)
	}

	_, err = db.GetForumUsers(ctx, "missing-forum", 0, "", false)
	if !IsNotFound(err) {
		t.Fatalf("GetForumUsers on missing forum = %v, want NotFoundError", err)
	}
}
