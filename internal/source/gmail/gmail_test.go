package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/credential"
	"github.com/nhle/studyflow/internal/source"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func newTokens(t *testing.T, userID string) *credential.Store {
	t.Helper()
	store := credential.New(keyring.NewArrayKeyring(nil))
	tok, err := json.Marshal(&oauth2.Token{AccessToken: "access", TokenType: "Bearer"})
	require.NoError(t, err)
	require.NoError(t, store.Set(credential.GmailTokenKey(userID), string(tok)))
	return store
}

func fakeGmail(t *testing.T, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = fmt.Fprintf(w, `{"error":{"code":%d,"message":"nope"}}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/users/me/messages"):
			assert.True(t, strings.HasPrefix(r.URL.Query().Get("q"), "after:"))
			_, _ = w.Write([]byte(`{"messages":[{"id":"m1"},{"id":"m2"},{"id":"m3"}]}`))
		case strings.HasSuffix(r.URL.Path, "/users/me/messages/m1"),
			strings.HasSuffix(r.URL.Path, "/users/me/messages/m2"):
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":           id,
				"internalDate": "1735700000000",
				"payload": map[string]any{
					"mimeType": "multipart/alternative",
					"headers": []map[string]string{
						{"name": "From", "value": "Prof <prof@school.edu>"},
						{"name": "Subject", "value": "Essay " + id},
					},
					"parts": []map[string]any{
						{"mimeType": "text/html", "body": map[string]string{"data": b64("<p>html</p>")}},
						{"mimeType": "text/plain", "body": map[string]string{"data": b64("  Essay due Friday.  ")}},
					},
				},
			})
		default:
			t.Errorf("unexpected request %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newSource(t *testing.T, srv *httptest.Server, tokens TokenStore) *Source {
	t.Helper()
	return New(&oauth2.Config{}, tokens, 2, 30,
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
}

func TestFetchEmails(t *testing.T) {
	srv := fakeGmail(t, http.StatusOK)
	defer srv.Close()

	emails, err := newSource(t, srv, newTokens(t, "u1")).FetchEmails(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, emails, 2, "capped at maxResults")

	assert.Equal(t, "m1", emails[0].ID)
	assert.Equal(t, "Prof <prof@school.edu>", emails[0].From)
	assert.Equal(t, "Essay m1", emails[0].Subject)
	assert.Equal(t, "Essay due Friday.", emails[0].Body)
	assert.Equal(t, time.UnixMilli(1735700000000).UTC(), emails[0].Date)
}

func TestFetchEmails_NotConnected(t *testing.T) {
	srv := fakeGmail(t, http.StatusOK)
	defer srv.Close()

	_, err := newSource(t, srv, credential.New(keyring.NewArrayKeyring(nil))).
		FetchEmails(context.Background(), "u1")
	assert.True(t, source.IsAuthError(err))
}

func TestClassify(t *testing.T) {
	srv := fakeGmail(t, http.StatusServiceUnavailable)
	defer srv.Close()

	_, err := newSource(t, srv, newTokens(t, "u1")).FetchEmails(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, apperr.IsTemporary(err))

	srv401 := fakeGmail(t, http.StatusUnauthorized)
	defer srv401.Close()

	_, err = newSource(t, srv401, newTokens(t, "u1")).FetchEmails(context.Background(), "u1")
	assert.True(t, source.IsAuthError(err))
}

func TestAuthURL(t *testing.T) {
	s := New(&oauth2.Config{
		ClientID:    "cid",
		RedirectURL: "http://localhost:6789/oauth2callback",
		Endpoint:    oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth"},
	}, nil, 20, 30)

	u := s.AuthURL("state-1")
	assert.Contains(t, u, "access_type=offline")
	assert.Contains(t, u, "prompt=consent")
	assert.Contains(t, u, "state=state-1")
}
