package common

// EmailSender delivers a single HTML email. Production wiring plugs a real
// transport in; NopEmailSender keeps email optional without nil checks at
// every call site.
type EmailSender interface {
	Send(to, subject, html string) error
}

// NopEmailSender discards every message.
type NopEmailSender struct{}

func (NopEmailSender) Send(string, string, string) error { return nil }

// Email is one message captured by InMemoryEmail.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail records outgoing mail for tests to inspect.
type InMemoryEmail struct {
	Outbox []Email
}

func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}
