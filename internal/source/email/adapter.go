package email

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/studyflow/internal/source"
)

// maxBodyChars bounds the body text handed to extraction.
const maxBodyChars = 2000

// Adapter implements source.EmailSource on top of an IMAP mailbox.
type Adapter struct {
	client     *IMAPClient
	mailbox    string
	limit      int
	windowDays int
	now        func() time.Time
}

// NewAdapter creates an IMAP-backed email source. Only messages from the
// last windowDays days are considered, newest limit first.
func NewAdapter(client *IMAPClient, mailbox string, limit, windowDays int) *Adapter {
	if mailbox == "" {
		mailbox = "INBOX"
	}
	return &Adapter{
		client:     client,
		mailbox:    mailbox,
		limit:      limit,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// Type returns the source type identifier for IMAP.
func (a *Adapter) Type() source.SourceType {
	return source.SourceTypeIMAP
}

// FetchEmails returns recent messages from the configured mailbox. The
// mailbox is account-wide, so userID is not used to select it.
func (a *Adapter) FetchEmails(ctx context.Context, _ string) ([]source.Email, error) {
	since := a.now().AddDate(0, 0, -a.windowDays)
	messages, err := a.client.FetchMessages(ctx, a.mailbox, since, a.limit)
	if err != nil {
		return nil, fmt.Errorf("fetching IMAP messages: %w", err)
	}

	emails := make([]source.Email, 0, len(messages))
	for _, m := range messages {
		emails = append(emails, toEmail(m))
	}
	return emails, nil
}

func toEmail(m ParsedMessage) source.Email {
	id := strings.Trim(m.Envelope.MessageID, "<>")
	if id == "" {
		id = "imap-" + strconv.FormatUint(uint64(m.Envelope.UID), 10)
	}
	return source.Email{
		ID:      id,
		From:    m.Envelope.From,
		Subject: m.Envelope.Subject,
		Body:    Truncate(m.Body(), maxBodyChars),
		Date:    m.Envelope.Date,
	}
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
