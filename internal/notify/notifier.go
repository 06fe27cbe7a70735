// Package notify delivers credential emails. Delivery always happens after
// the triggering transaction commits and its failures never reach the
// caller of the credential flow.
package notify

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

type MessageKind string

const (
	KindInvite            MessageKind = "invite"
	KindEmailVerification MessageKind = "email_verification"
	KindSetPassword       MessageKind = "set_password"
	KindPasswordReset     MessageKind = "password_reset"
)

// Message is one outbound notification. Link carries the raw single-use
// token and must not be logged outside development.
type Message struct {
	To            string      `json:"to"`
	Kind          MessageKind `json:"kind"`
	RecipientName string      `json:"recipient_name,omitempty"`
	ClubName      string      `json:"club_name,omitempty"`
	Link          string      `json:"link"`
	ExpiresAt     time.Time   `json:"expires_at"`
}

// Notifier performs the actual delivery.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher hands a message off for asynchronous delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message) error
}

var linkPaths = map[MessageKind]string{
	KindInvite:            "/accept-invite",
	KindEmailVerification: "/verify-email",
	KindSetPassword:       "/set-password",
	KindPasswordReset:     "/reset-password",
}

// LinkBuilder renders the front end URLs that carry tokens.
type LinkBuilder struct {
	base *url.URL
}

func NewLinkBuilder(baseURL string) (*LinkBuilder, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}
	return &LinkBuilder{base: u}, nil
}

func (b *LinkBuilder) Build(kind MessageKind, userID uuid.UUID, rawToken string) string {
	u := *b.base
	u.Path = b.base.Path + linkPaths[kind]
	q := url.Values{}
	q.Set("uid", userID.String())
	q.Set("token", rawToken)
	u.RawQuery = q.Encode()
	return u.String()
}

type messageTemplate struct {
	subject string
	intro   string
	action  string
}

var templates = map[MessageKind]messageTemplate{
	KindInvite: {
		subject: "You have been invited to %s",
		intro:   "You have been invited to join %s.",
		action:  "Accept the invitation",
	},
	KindEmailVerification: {
		subject: "Verify your email for %s",
		intro:   "Please confirm the email address for your %s account.",
		action:  "Verify email",
	},
	KindSetPassword: {
		subject: "Set your password for %s",
		intro:   "An account has been prepared for you at %s.",
		action:  "Set your password",
	},
	KindPasswordReset: {
		subject: "Reset your %s password",
		intro:   "Someone asked to reset the password of your %s account. If it was not you, ignore this email.",
		action:  "Reset password",
	},
}

// Render returns the subject and HTML body for msg.
func Render(msg Message) (string, string, error) {
	tpl, ok := templates[msg.Kind]
	if !ok {
		return "", "", fmt.Errorf("unknown message kind %q", msg.Kind)
	}
	club := msg.ClubName
	if club == "" {
		club = "ClubHub"
	}
	greeting := "Hello"
	if msg.RecipientName != "" {
		greeting = "Hello " + msg.RecipientName
	}

	subject := fmt.Sprintf(tpl.subject, club)
	body := fmt.Sprintf("<p>%s,</p><p>%s</p><p><a href='%s'>%s</a></p><p>This link expires on %s.</p>",
		html.EscapeString(greeting), html.EscapeString(fmt.Sprintf(tpl.intro, club)), html.EscapeString(msg.Link), tpl.action,
		msg.ExpiresAt.UTC().Format("2 Jan 2006 15:04 MST"))
	return subject, body, nil
}
