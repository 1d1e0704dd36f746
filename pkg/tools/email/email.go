// Package email exposes a Gmail mailbox as orchestrator tools.
package email

import (
	"context"
	"time"
)

// Message is a mailbox entry as shown to the model.
type Message struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Date    time.Time `json:"date"`
	Snippet string    `json:"snippet"`
}

// Draft is an outgoing message.
type Draft struct {
	To      []string
	Cc      []string
	Subject string
	Body    string
}

// MailService is the mailbox backend used by the tools.
type MailService interface {
	Search(ctx context.Context, query string, limit int) ([]Message, error)
	Send(ctx context.Context, d Draft) (string, error)
}
