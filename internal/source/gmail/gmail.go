package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nhle/studyflow/internal/apperr"
	"github.com/nhle/studyflow/internal/credential"
	"github.com/nhle/studyflow/internal/source"
	"github.com/nhle/studyflow/internal/source/email"
)

const (
	listPageSize = 50
	maxBodyChars = 2000
)

// TokenStore persists per-user OAuth tokens. credential.Store satisfies it.
type TokenStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// LoadOAuthConfig reads a Google client secrets file and returns a
// config limited to read-only Gmail access.
func LoadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading client secrets %s: %w", credentialsFile, err)
	}
	cfg, err := google.ConfigFromJSON(b, gmailapi.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secrets: %w", err)
	}
	return cfg, nil
}

// Source implements source.EmailSource against the Gmail API using the
// user's stored OAuth token.
type Source struct {
	config     *oauth2.Config
	tokens     TokenStore
	maxResults int
	windowDays int
	opts       []option.ClientOption
	now        func() time.Time
}

// New creates a Gmail email source. Extra client options are passed to
// the Gmail service, which tests use to point it at a fake endpoint.
func New(
	config *oauth2.Config,
	tokens TokenStore,
	maxResults, windowDays int,
	opts ...option.ClientOption,
) *Source {
	return &Source{
		config:     config,
		tokens:     tokens,
		maxResults: maxResults,
		windowDays: windowDays,
		opts:       opts,
		now:        time.Now,
	}
}

// Type returns the source type identifier for Gmail.
func (s *Source) Type() source.SourceType {
	return source.SourceTypeGmail
}

// AuthURL returns the consent page URL for connecting a mailbox.
// AccessTypeOffline is required to receive a refresh token.
func (s *Source) AuthURL(state string) string {
	return s.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token and stores it for
// the user.
func (s *Source) Exchange(ctx context.Context, userID, code string) error {
	tok, err := s.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}
	return s.saveToken(userID, tok)
}

func (s *Source) saveToken(userID string, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := s.tokens.Set(credential.GmailTokenKey(userID), string(b)); err != nil {
		return fmt.Errorf("storing gmail token: %w", err)
	}
	return nil
}

func (s *Source) loadToken(userID string) (*oauth2.Token, error) {
	raw, err := s.tokens.Get(credential.GmailTokenKey(userID))
	if errors.Is(err, credential.ErrNotFound) {
		return nil, &source.AuthError{
			SourceType: source.SourceTypeGmail,
			Message:    "gmail is not connected for this user",
		}
	}
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{}
	if err := json.Unmarshal([]byte(raw), tok); err != nil {
		return nil, fmt.Errorf("decoding stored gmail token: %w", err)
	}
	return tok, nil
}

// FetchEmails lists messages from the last windowDays days and returns
// the newest maxResults of them with their plain-text bodies.
func (s *Source) FetchEmails(ctx context.Context, userID string) ([]source.Email, error) {
	tok, err := s.loadToken(userID)
	if err != nil {
		return nil, err
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(s.config.TokenSource(ctx, tok)),
	}, s.opts...)
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	after := s.now().AddDate(0, 0, -s.windowDays).Format("2006/01/02")
	list, err := svc.Users.Messages.List("me").
		Q("after:" + after).
		MaxResults(listPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("listing gmail messages", err)
	}

	refs := list.Messages
	if s.maxResults > 0 && len(refs) > s.maxResults {
		refs = refs[:s.maxResults]
	}

	emails := make([]source.Email, 0, len(refs))
	for _, ref := range refs {
		msg, err := svc.Users.Messages.Get("me", ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, classify("getting gmail message "+ref.Id, err)
		}
		emails = append(emails, toEmail(msg))
	}
	return emails, nil
}

// classify maps Gmail API failures onto auth and retryable errors.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return &source.AuthError{
				SourceType: source.SourceTypeGmail,
				Message:    fmt.Sprintf("%s: %s", op, gerr.Message),
			}
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return apperr.Temporary("gmail unavailable", fmt.Errorf("%s: %w", op, err))
		}
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return &source.AuthError{
			SourceType: source.SourceTypeGmail,
			Message:    fmt.Sprintf("%s: refreshing token: %s", op, rerr.ErrorCode),
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func toEmail(msg *gmailapi.Message) source.Email {
	e := source.Email{
		ID:   msg.Id,
		Date: time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload == nil {
		return e
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			e.From = h.Value
		case "subject":
			e.Subject = h.Value
		}
	}
	e.Body = email.Truncate(bodyText(msg.Payload), maxBodyChars)
	return e
}

// bodyText prefers the first text/plain part anywhere in the MIME tree
// and falls back to the top-level body.
func bodyText(part *gmailapi.MessagePart) string {
	if text, ok := findPlain(part); ok {
		return text
	}
	if part.Body != nil {
		return decode(part.Body.Data)
	}
	return ""
}

func findPlain(part *gmailapi.MessagePart) (string, bool) {
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decode(part.Body.Data), true
	}
	for _, p := range part.Parts {
		if text, ok := findPlain(p); ok {
			return text, true
		}
	}
	return "", false
}

func decode(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return strings.TrimSpace(string(b))
}
