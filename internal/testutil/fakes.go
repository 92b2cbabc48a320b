package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"storefront-backend/internal/models"
	"storefront-backend/internal/services"
)

// ErrInjected is returned by fakes configured to fail.
var ErrInjected = errors.New("injected failure")

// SentMail is one message captured by Mailer
type SentMail struct {
	To      string
	Subject string
	Body    string
}

// Mailer records outgoing mail. When Fail is set every Send returns
// ErrInjected; when Simulate is set it behaves like an unconfigured SMTPMailer.
type Mailer struct {
	mu       sync.Mutex
	sent     []SentMail
	Fail     bool
	Simulate bool
}

var _ services.MailSender = (*Mailer)(nil)

func (m *Mailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail {
		return ErrInjected
	}
	if m.Simulate {
		return services.ErrEmailSimulated
	}
	m.sent = append(m.sent, SentMail{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a copy of the captured mail.
func (m *Mailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.sent...)
}

// SetFail toggles failure injection.
func (m *Mailer) SetFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fail = fail
}

// SentPush is one message captured by Push
type SentPush struct {
	Token   string
	Message models.PushMessage
}

// Push records push sends. Tokens listed in FailTokens fail.
type Push struct {
	mu         sync.Mutex
	sent       []SentPush
	FailTokens map[string]bool
	FailAll    bool
}

var _ services.PushProvider = (*Push)(nil)

func (p *Push) Send(_ context.Context, token string, msg models.PushMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailAll || p.FailTokens[token] {
		return ErrInjected
	}
	p.sent = append(p.sent, SentPush{Token: token, Message: msg})
	return nil
}

// Sent returns a copy of the captured pushes.
func (p *Push) Sent() []SentPush {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SentPush(nil), p.sent...)
}

// Publisher records notifications handed to the realtime hub.
type Publisher struct {
	mu        sync.Mutex
	published []*models.Notification
}

func (p *Publisher) Publish(n *models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
}

// Published returns the captured notifications.
func (p *Publisher) Published() []*models.Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.Notification(nil), p.published...)
}

// RetryQueue is a buffered in-memory services.RetryQueue
type RetryQueue struct {
	jobs chan services.RetryJob
}

// NewRetryQueue creates a queue holding up to size jobs.
func NewRetryQueue(size int) *RetryQueue {
	return &RetryQueue{jobs: make(chan services.RetryJob, size)}
}

var _ services.RetryQueue = (*RetryQueue)(nil)

func (q *RetryQueue) Enqueue(ctx context.Context, job services.RetryJob) error {
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *RetryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*services.RetryJob, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case job := <-q.jobs:
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of queued jobs.
func (q *RetryQueue) Len() int {
	return len(q.jobs)
}
