package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/clog"
	"github.com/nhle/studyflow/internal/store"
)

// SessionCookie is the cookie carrying a session token.
const SessionCookie = "session"

type userKey struct{}

func withUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// userFrom returns the authenticated user id set by requireSession.
func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// requireSession resolves the session token to a user or answers 401.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			writeError(w, r, apperr.New(apperr.Unauthenticated, "authentication required", nil))
			return
		}

		userID, err := s.store.UserIDForSession(r.Context(), token)
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, apperr.New(apperr.Unauthenticated, "invalid session", err))
			return
		}
		if err != nil {
			writeError(w, r, apperr.WrapStoreError("session", err))
			return
		}

		clog.AddUser(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), userID)))
	})
}
