// forum/errors.go
package forum

import (
	"errors"
	"fmt"
)

// ErrConflict marks a unique-constraint race (duplicate nickname,
// email, forum slug or thread slug). The caller should re-fetch the
// canonical resource; nothing was partially written.
var ErrConflict = errors.New("resource already exists")

// EntityKind names the entity a failed lookup was after.
type EntityKind string

const (
	KindUser   EntityKind = "user"
	KindForum  EntityKind = "forum"
	KindThread EntityKind = "thread"
	KindPost   EntityKind = "post"
	KindParent EntityKind = "parent"
)

// NotFoundError reports a reference to a nonexistent entity, carrying
// the identifier the client supplied.
type NotFoundError struct {
	Kind EntityKind
	Ref  string
}

func (e *NotFoundError) Error() string {
	switch e.Kind {
	case KindUser:
		return fmt.Sprintf("can't find user with nickname %s", e.Ref)
	case KindForum:
		return fmt.Sprintf("can't find forum with slug %s", e.Ref)
	case KindThread:
		return fmt.Sprintf("can't find thread with slug or id %s", e.Ref)
	case KindParent:
		return fmt.Sprintf("can't find parent post with id %s", e.Ref)
	default:
		return fmt.Sprintf("can't find post with id %s", e.Ref)
	}
}

func notFound(kind EntityKind, ref string) *NotFoundError {
	return &NotFoundError{Kind: kind, Ref: ref}
}

// IsNotFound reports whether err is a NotFoundError of any kind.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
