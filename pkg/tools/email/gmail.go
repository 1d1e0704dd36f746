package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const me = "me"

// GmailService implements MailService on the Gmail v1 API.
type GmailService struct {
	svc *gmail.Service
}

// NewGmailService builds a service authorised by the given token source.
func NewGmailService(ctx context.Context, ts oauth2.TokenSource) (*GmailService, error) {
	svc, err := gmail.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &GmailService{svc: svc}, nil
}

func (g *GmailService) Search(ctx context.Context, query string, limit int) ([]Message, error) {
	resp, err := g.svc.Users.Messages.List(me).Q(query).MaxResults(int64(limit)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	out := make([]Message, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		msg, err := g.svc.Users.Messages.Get(me, ref.Id).
			Format("metadata").
			MetadataHeaders("From", "Subject", "Date").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("get message %s: %w", ref.Id, err)
		}
		out = append(out, fromGmail(msg))
	}
	return out, nil
}

func (g *GmailService) Send(ctx context.Context, d Draft) (string, error) {
	raw := base64.URLEncoding.EncodeToString(compose(d))
	sent, err := g.svc.Users.Messages.Send(me, &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return sent.Id, nil
}

func fromGmail(msg *gmail.Message) Message {
	out := Message{ID: msg.Id, Snippet: msg.Snippet}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			out.From = h.Value
		case "subject":
			out.Subject = h.Value
		case "date":
			if t, err := mail.ParseDate(h.Value); err == nil {
				out.Date = t
			}
		}
	}
	if out.Date.IsZero() && msg.InternalDate > 0 {
		out.Date = time.UnixMilli(msg.InternalDate)
	}
	return out
}

// singleLine folds CR and LF into spaces so a value cannot start a new header.
func singleLine(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return ' '
		}
		return r
	}, s))
}

func compose(d Draft) []byte {
	var b strings.Builder
	b.WriteString("To: " + strings.Join(d.To, ", ") + "\r\n")
	if len(d.Cc) > 0 {
		b.WriteString("Cc: " + strings.Join(d.Cc, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", singleLine(d.Subject)) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(d.Body)
	return []byte(b.String())
}
