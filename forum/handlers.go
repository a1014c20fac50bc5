// forum/handlers.go
package forum

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	db      *Database
	logger  *slog.Logger
	limiter *rateLimiter
}

func NewHandlers(db *Database, logger *slog.Logger) *Handlers {
	return &Handlers{
		db:      db,
		logger:  logger,
		limiter: newRateLimiter(defaultRateEvery, defaultRateBurst),
	}
}

func (h *Handlers) Routes() *chi.Mux {
	mux := chi.NewRouter()

	mux.Use(middleware.RealIP)
	mux.Use(h.requestLogger)
	mux.Use(middleware.Recoverer)
	mux.Use(h.limiter.middleware)

	mux.Route("/api", func(r chi.Router) {
		r.Route("/user/{nickname}", func(r chi.Router) {
			r.Post("/create", h.createUser)
			r.Get("/profile", h.getUser)
			r.Post("/profile", h.updateUser)
		})
		r.Route("/forum", func(r chi.Router) {
			r.Post("/create", h.createForum)
			r.Get("/{slug}/details", h.getForum)
			r.Post("/{slug}/create", h.createThread)
			r.Get("/{slug}/threads", h.getForumThreads)
			r.Get("/{slug}/users", h.getForumUsers)
		})
		r.Route("/thread/{slug_or_id}", func(r chi.Router) {
			r.Post("/create", h.createPosts)
			r.Get("/details", h.getThread)
			r.Post("/details", h.updateThread)
			r.Get("/posts", h.getThreadPosts)
			r.Post("/vote", h.voteThread)
		})
		r.Route("/post/{id}", func(r chi.Router) {
			r.Get("/details", h.getPost)
			r.Post("/details", h.updatePost)
		})
		r.Route("/service", func(r chi.Router) {
			r.Get("/status", h.getStatus)
			r.Post("/clear", h.clear)
		})
	})

	return mux
}

func (h *Handlers) createUser(w http.ResponseWriter, r *http.Request) {
	var user User
	if err := decode(r, &user); err != nil {
		h.respond(w, http.StatusBadRequest, Error{Message: err.Error()})
		return
	}
	user.Nickname = chi.URLParam(r, "nickname")

	err := h.db.CreateUser(r.Context(), &user)
	if errors.Is(err, ErrConflict) {
		existing, err := h.db.GetUsersByNicknameOrEmail(r.Context(), user.Nickname, user.Email)
		if err != nil {
			h.serverError(w, err)
			return
		}
		h.respond(w, http.StatusConflict, existing)
		return
	}
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, user)
}

func (h *Handlers) getUser(w http.ResponseWriter, r *http.Request) {
	nickname := chi.URLParam(r, "nickname")
	user, err := h.db.GetUserByNickname(r.Context(), nickname)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if user == nil {
		h.respondError(w, notFound(KindUser, nickname))
		return
	}
	h.respond(w, http.StatusOK, user)
}

func (h *Handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	var update UserUpdate
	if err := decode(r, &update); err != nil {
		h.respond(w, http.StatusBadRequest, Error{Message: err.Error()})
		return
	}
	user, err := h.db.UpdateUser(r.Context(), chi.URLParam(r, "nickname"), &update)
	if errors.Is(err, ErrConflict) {
		h.respond(w, http.StatusConflict, Error{Message: "this email is already in use"})
		return
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, user)
}

func (h *Handlers) createForum(w http.ResponseWriter, r *http.Request) {
	var forum Forum
	if err := decode(r, &forum); err != nil {
		h.respond(w, http.StatusBadRequest, Error{Message: err.Error()})
		return
	}
	created, err := h.db.CreateForum(r.Context(), &forum)
	if errors.Is(err, ErrConflict) {
		existing, err := h.db.GetForumBySlug(r.Context(), forum.Slug)
		if err != nil || existing == nil {
			h.serverError(w, err)
			return
		}
		h.respond(w, http.StatusConflict, existing)
		return
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, created)
}

func (h *Handlers) getForum(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	forum, err := h.db.GetForumBySlug(r.Context(), slug)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if forum == nil {
		h.respondError(w, notFound(KindForum, slug))
		return
	}
	h.respond(w, http.StatusOK, forum)
}

func (h *Handlers) createThread(w http.ResponseWriter, r *http.Request) {
	var thread Thread
	if err := decode(r, &thread); err != nil {
		h.respond(w, http.StatusBadRequest, Error{Message: err.Error()})
		return
	}
	created, err := h.db.CreateThread(r.Context(), chi.URLParam(r, "slug"), &thread)
	if errors.Is(err, ErrConflict) {
		existing, err := h.db.GetThreadBySlugOrID(r.Context(), thread.Slug)
		if err != nil || existing == nil {
			h.serverError(w, err)
			return
		}
		h.respond(w, http.StatusConflict, existing)
		return
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, created)
}

func (h *Handlers) getForumThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.db.GetForumThreads(r.Context(), chi.URLParam(r, "slug"),
		queryInt(r, "limit"), r.URL.Query().Get("since"), queryBool(r, "desc"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, threads)
}

func (h *Handlers) getForumUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.db.GetForumUsers(r.Context(), chi.URLParam(r, "slug"),
		queryInt(r, "limit"), r.URL.Query().Get("since"), queryBool(r, "desc"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, users)
}

func (h *Handlers) createPosts(w http.ResponseWriter, r *http.Request) {
	var posts []*Post
	if err := decode(r, &posts); err != nil {
		h.respond(w, http.StatusBadRequest, Error{Message: err.Error()})
		return
	}
	slugOrID := chi.URLParam(r, "slug_or_id")
	created, err := h.db.CreatePosts(r.Context(), slugOrID, posts)
	if err != nil {
		// A missing parent is a conflict, not a 404: the batch itself
		// is malformed relative to the thread's existing tree.
		var nf *NotFoundError
		if errors.As(err, &nf) && nf.Kind == KindParent {
			h.respond(w, http.StatusConflict,
				Error{Message: fmt.Sprintf("%s in thread %s", nf.Error(), slugOrID)})
			return
		}
		if errors.Is(err, ErrConflict) {
			h.respond(w, http.StatusConflict, Error{Message: "post id already in use"})
			return
		}
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, created)
}

func (h *Handlers) getThread(w http.ResponseWriter, r *http.Request) {
	slugOrID := chi.URLParam(r, "slug_or_id")
	thread, err := h.db.GetThreadBySlugOrID(r.Context(), slugOrID)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if thread == nil {
		h.respondError(w, notFound(KindThread, slugOrID))
		return
	}
	h.respond(w, http.StatusOK, thread)
}

func (h *Handlers) updateThread(w http.ResponseWriter, r *http.Request) {
	var update ThreadUpdate
	if err := decode(r, &update); err != nil {
		h.respond(w, http.StatusBadRequest, Error{Message: err.Error()})
		return
	}
	thread, err := h.db.UpdateThread(r.Context(), chi.URLParam(r, "slug_or_id"), &update)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, thread)
}

func (h *Handlers) getThreadPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.db.ListPosts(r.Context(), chi.URLParam(r, "slug_or_id"),
		r.URL.Query().Get("sort"), queryInt(r, "limit"), queryInt64(r, "since"),
		queryBool(r, "desc"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, posts)
}

func (h *Handlers) voteThread(w http.ResponseWriter, r *http.Request) {
	var vote Vote
	if err := decode(r, &vote); err != nil {
		h.respond(w, http.StatusBadRequest, Error{Message: err.Error()})
		return
	}
	thread, err := h.db.Vote(r.Context(), chi.URLParam(r, "slug_or_id"), &vote)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, thread)
}

func (h *Handlers) getPost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respond(w, http.StatusBadRequest, Error{Message: "invalid post id"})
		return
	}
	post, err := h.db.GetPostByID(r.Context(), id)
	if err != nil {
		h.serverError(w, err)
		return
	}
	if post == nil {
		h.respondError(w, notFound(KindPost, strconv.FormatInt(id, 10)))
		return
	}

	full := PostFull{Post: post}
	for _, related := range strings.Split(r.URL.Query().Get("related"), ",") {
		switch related {
		case "user":
			full.Author, err = h.db.GetUserByNickname(r.Context(), post.Author)
		case "forum":
			full.Forum, err = h.db.GetForumBySlug(r.Context(), post.Forum)
		case "thread":
			full.Thread, err = h.db.GetThreadBySlugOrID(r.Context(), strconv.Itoa(int(post.Thread)))
		}
		if err != nil {
			h.serverError(w, err)
			return
		}
	}
	h.respond(w, http.StatusOK, full)
}

func (h *Handlers) updatePost(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.respond(w, http.StatusBadRequest, Error{Message: "invalid post id"})
		return
	}
	var update PostUpdate
	if err := decode(r, &update); err != nil {
		h.respond(w, http.StatusBadRequest, Error{Message: err.Error()})
		return
	}
	post, err := h.db.UpdatePost(r.Context(), id, &update)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, post)
}

func (h *Handlers) getStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.db.Status(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}
	h.respond(w, http.StatusOK, status)
}

func (h *Handlers) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Clear(r.Context()); err != nil {
		h.serverError(w, err)
		return
	}
	h.respond(w, http.StatusOK, nil)
}

func (h *Handlers) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// respondError maps the storage error taxonomy to HTTP statuses:
// NotFound variants become 404, conflicts 409, anything else 500.
func (h *Handlers) respondError(w http.ResponseWriter, err error) {
	var nf *NotFoundError
	switch {
	case errors.As(err, &nf):
		h.respond(w, http.StatusNotFound, Error{Message: nf.Error()})
	case errors.Is(err, ErrConflict):
		h.respond(w, http.StatusConflict, Error{Message: err.Error()})
	default:
		h.serverError(w, err)
	}
}

func (h *Handlers) serverError(w http.ResponseWriter, err error) {
	h.logger.Error("request failed", "error", err)
	h.respond(w, http.StatusInternalServerError, Error{Message: "internal server error"})
}

func decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}

func queryInt64(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return n
}

func queryBool(r *http.Request, name string) bool {
	return r.URL.Query().Get(name) == "true"
}
