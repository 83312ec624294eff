package testutil

import (
	"context"
	"sync"

	"quill/internal/mail"
	"quill/internal/models"
)

// FakeEmailSender captures emails in memory for tests.
type FakeEmailSender struct {
	mu   sync.Mutex
	Err  error
	Sent []mail.Message
}

func NewFakeEmailSender() *FakeEmailSender {
	return &FakeEmailSender{Sent: make([]mail.Message, 0)}
}

func (f *FakeEmailSender) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Sent = append(f.Sent, msg)
	return nil
}

func (f *FakeEmailSender) LastSent() *mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return nil
	}
	return &f.Sent[len(f.Sent)-1]
}

func (f *FakeEmailSender) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// SentEmail is one SendEmail call recorded by FakeNotifier.
type SentEmail struct {
	To      []string
	Subject string
	Body    string
}

// InAppNotification is one CreateInAppNotification call recorded by FakeNotifier.
type InAppNotification struct {
	ForUserID uint
	Payload   models.NotificationPayload
}

// FakeNotifier records notifications instead of delivering them.
type FakeNotifier struct {
	mu       sync.Mutex
	InAppErr error
	EmailErr error
	InApp    []InAppNotification
	Emails   []SentEmail
}

func (f *FakeNotifier) CreateInAppNotification(_ context.Context, forUserID uint, payload models.NotificationPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InAppErr != nil {
		return f.InAppErr
	}
	f.InApp = append(f.InApp, InAppNotification{ForUserID: forUserID, Payload: payload})
	return nil
}

func (f *FakeNotifier) SendEmail(_ context.Context, to []string, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.EmailErr != nil {
		return f.EmailErr
	}
	f.Emails = append(f.Emails, SentEmail{To: append([]string(nil), to...), Subject: subject, Body: body})
	return nil
}
