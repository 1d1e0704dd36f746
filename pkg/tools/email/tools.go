package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Protocol-Lattice/calendar-agent/pkg/tools"
)

const defaultSearchLimit = 10

// Tools returns the e-mail tool family. A nil service disables them.
func Tools(svc MailService) []tools.Tool {
	return []tools.Tool{&SearchEmails{svc: svc}, &SendEmail{svc: svc}}
}

// SearchEmails runs a Gmail search query.
type SearchEmails struct{ svc MailService }

func (t *SearchEmails) Enabled() bool { return t.svc != nil }

func (t *SearchEmails) Spec() tools.Spec {
	return tools.Spec{
		Name:        "search_emails",
		Description: "Searches the mailbox using Gmail query syntax (from:, subject:, newer_than:7d, ...).",
		Parameters: map[string]tools.ParameterSchema{
			"query": {Type: "string", Required: true},
			"limit": {Type: "integer", Description: "Maximum number of messages (default 10)."},
		},
		Examples: []map[string]any{{"query": "from:anna@example.com newer_than:7d"}},
	}
}

func (t *SearchEmails) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	limit := tools.Int(args, "limit", defaultSearchLimit)
	if limit <= 0 || limit > 50 {
		limit = defaultSearchLimit
	}
	msgs, err := t.svc.Search(ctx, tools.String(args, "query"), limit)
	if err != nil {
		return tools.Result{}, err
	}
	if len(msgs) == 0 {
		return tools.Result{Success: true, Data: msgs, Message: "No matching e-mails."}, nil
	}
	lines := []string{fmt.Sprintf("Found %d e-mail(s):", len(msgs))}
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("- %s from %s: %s", m.Subject, m.From, m.Snippet))
	}
	return tools.Result{Success: true, Data: msgs, Message: strings.Join(lines, "\n")}, nil
}

// SendEmail sends a plain-text message.
type SendEmail struct{ svc MailService }

func (t *SendEmail) Enabled() bool { return t.svc != nil }

func (t *SendEmail) Spec() tools.Spec {
	return tools.Spec{
		Name:        "send_email",
		Description: "Sends a plain-text e-mail. Only use when the user explicitly asks to send a message.",
		Parameters: map[string]tools.ParameterSchema{
			"to":      {Type: "array", Required: true, Description: "Recipient addresses."},
			"cc":      {Type: "array"},
			"subject": {Type: "string", Required: true},
			"body":    {Type: "string", Required: true},
		},
	}
}

func addresses(list []string) ([]string, error) {
	out := make([]string, 0, len(list))
	for _, a := range list {
		addr, err := mail.ParseAddress(a)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q", a)
		}
		out = append(out, addr.String())
	}
	return out, nil
}

func (t *SendEmail) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	to, err := addresses(tools.Strings(args, "to"))
	if err != nil {
		return tools.Failure(err.Error()), nil
	}
	if len(to) == 0 {
		return tools.Failure("at least one recipient is required"), nil
	}
	cc, err := addresses(tools.Strings(args, "cc"))
	if err != nil {
		return tools.Failure(err.Error()), nil
	}
	draft := Draft{
		To:      to,
		Cc:      cc,
		Subject: singleLine(tools.String(args, "subject")),
		Body:    tools.String(args, "body"),
	}
	id, err := t.svc.Send(ctx, draft)
	if err != nil {
		return tools.Result{}, err
	}
	return tools.Result{
		Success: true,
		Data:    map[string]string{"id": id},
		Message: fmt.Sprintf("Sent %q to %s.", draft.Subject, strings.Join(to, ", ")),
	}, nil
}
