package email

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/studyflow/internal/source"
)

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
type IMAPClient struct {
	host     string
	port     int
	username string
	password string
	tls      bool
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(host string, port int, username, password string, tls bool) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The connection is closed when ctx is
// done. The caller is responsible for calling Logout on the client.
func (c *IMAPClient) Connect(ctx context.Context) (*imapclient.Client, func(), error) {
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))

	var client *imapclient.Client
	var err error
	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		stop()
		_ = client.Logout().Wait()
		return nil, nil, &source.AuthError{
			SourceType: source.SourceTypeIMAP,
			Message:    fmt.Sprintf("authentication failed for %s: %v", c.username, err),
		}
	}

	release := func() {
		stop()
		_ = client.Logout().Wait()
	}
	return client, release, nil
}

// FetchMessages selects mailbox, searches for messages received since
// the given time, and returns up to limit of the most recent ones with
// their bodies parsed. Messages are fetched with PEEK so they stay unread.
func (c *IMAPClient) FetchMessages(
	ctx context.Context,
	mailbox string,
	since time.Time,
	limit int,
) ([]ParsedMessage, error) {
	client, release, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", mailbox, err)
	}

	searchData, err := client.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	// UIDs ascend with arrival; keep the newest.
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var messages []ParsedMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		parsed := ParsedMessage{Envelope: envelopeFromBuffer(buf)}
		if raw := buf.FindBodySection(bodySection); raw != nil {
			parsed.TextBody, parsed.HTMLBody = parseMIMEBody(raw)
		}
		messages = append(messages, parsed)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching messages: %w", err)
	}
	return messages, nil
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer. The
// sender is the bare address so it can be matched against domains.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{UID: uint32(buf.UID)}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date
		if len(buf.Envelope.From) > 0 {
			env.From = buf.Envelope.From[0].Addr()
		}
	}

	return env
}

// parseMIMEBody parses a raw RFC 2822 message using go-message and
// returns its text/plain and text/html parts.
func parseMIMEBody(raw []byte) (textBody, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		body, err := io.ReadAll(part.Body)
		if err != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}

var (
	tagPattern   = regexp.MustCompile(`(?s)<[^>]*>`)
	spacePattern = regexp.MustCompile(`[ \t]+`)
)

func stripTags(html string) string {
	text := tagPattern.ReplaceAllString(html, " ")
	return strings.TrimSpace(spacePattern.ReplaceAllString(text, " "))
}
