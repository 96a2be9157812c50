package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brewgator/fixpet/internal/resend"
)

// SentEmail is an email captured by Mailer.
type SentEmail struct {
	ID     string       `json:"id"`
	Email  resend.Email `json:"email"`
	SentAt time.Time    `json:"sent_at"`
}

// Mailer records emails instead of sending them.
type Mailer struct {
	mu   sync.Mutex
	sent []SentEmail
	err  error
}

// NewMailer creates an empty mailer.
func NewMailer() *Mailer {
	return &Mailer{}
}

// Name identifies the service in health reports.
func (m *Mailer) Name() string { return "resend" }

// Ping always succeeds.
func (m *Mailer) Ping(ctx context.Context) error { return nil }

// Send implements resend.Sender.
func (m *Mailer) Send(ctx context.Context, email resend.Email) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	if len(email.To) == 0 {
		return "", resend.ErrNoRecipients
	}

	id := "mock_" + uuid.NewString()
	m.sent = append(m.sent, SentEmail{ID: id, Email: email, SentAt: time.Now().UTC()})
	return id, nil
}

// FailWith makes every Send return err (nil clears it).
func (m *Mailer) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

// List returns the captured emails in send order.
func (m *Mailer) List() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentEmail, len(m.sent))
	copy(out, m.sent)
	return out
}

// Reset forgets every captured email and clears any injected failure.
func (m *Mailer) Reset() {
	m.mu.Lock()
	m.sent = nil
	m.err = nil
	m.mu.Unlock()
}
