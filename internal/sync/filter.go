package sync

import (
	"net/mail"
	"strings"
	"time"

	"github.com/nhle/studyflow/internal/source"
)

// FilterWindow keeps emails newer than the watermark. On a first sync
// (lastSync nil) it keeps emails at or after now minus window.
func FilterWindow(emails []source.Email, lastSync *time.Time, now time.Time, window time.Duration) []source.Email {
	kept := make([]source.Email, 0, len(emails))
	for _, e := range emails {
		if lastSync == nil {
			if !e.Date.Before(now.Add(-window)) {
				kept = append(kept, e)
			}
			continue
		}
		if e.Date.After(*lastSync) {
			kept = append(kept, e)
		}
	}
	return kept
}

// FilterSenders applies the school allow-list. An empty domain keeps
// everything; Canvas notification senders always pass.
func FilterSenders(emails []source.Email, domain string) []source.Email {
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "@"))
	if domain == "" {
		return emails
	}

	kept := make([]source.Email, 0, len(emails))
	for _, e := range emails {
		if senderAllowed(e.From, domain) {
			kept = append(kept, e)
		}
	}
	return kept
}

// senderAllowed matches the domain rules against the bare address. The
// Canvas rule looks at the whole header so a display name counts too.
func senderAllowed(from, domain string) bool {
	addr := SenderAddress(from)
	return strings.HasSuffix(addr, "@"+domain) ||
		strings.Contains(strings.ToLower(from), "canvas") ||
		strings.HasSuffix(addr, "@instructure.com")
}

// SenderAddress returns the bare lowercase address of a From header,
// e.g. "Prof. Smith <Smith@Uni.edu>" becomes "smith@uni.edu".
func SenderAddress(from string) string {
	if addr, err := mail.ParseAddress(from); err == nil {
		return strings.ToLower(addr.Address)
	}
	return strings.ToLower(strings.TrimSpace(from))
}
