package email

import "time"

// Envelope holds the parsed envelope data from an IMAP message.
type Envelope struct {
	MessageID string
	Subject   string
	From      string
	Date      time.Time
	UID       uint32
}

// ParsedMessage holds the full parsed content of an email message.
type ParsedMessage struct {
	Envelope Envelope
	TextBody string
	HTMLBody string
}

// Body returns the plain-text body, falling back to HTML with tags
// stripped when the message has no text/plain part.
func (m ParsedMessage) Body() string {
	if m.TextBody != "" {
		return m.TextBody
	}
	return stripTags(m.HTMLBody)
}
