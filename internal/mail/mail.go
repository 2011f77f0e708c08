// Package mail delivers account emails over SMTP or, in development, to the log.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
)

// Sender delivers a single HTML message
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// VerificationData is rendered into the verification email
type VerificationData struct {
	Name    string
	Link    string
	AppName string
}

const verificationSubject = "Confirm your email address"

const templates = `
{{define "verification"}}<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>{{.AppName}}</title></head>
<body>
<p>Hello {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
<p>Please confirm your email address for {{.AppName}} by following the link below:</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
<p>If you did not create an account, ignore this message.</p>
</body>
</html>
{{end}}`

// Mailer composes account emails and hands them to a Sender
type Mailer struct {
	sender      Sender
	templates   *template.Template
	linkBaseURL string
	appName     string
}

// NewMailer creates a Mailer. linkBaseURL is the verify-email endpoint the
// token is appended to as the "token" query parameter.
func NewMailer(sender Sender, linkBaseURL, appName string) (*Mailer, error) {
	if _, err := url.Parse(linkBaseURL); err != nil {
		return nil, fmt.Errorf("invalid verification link base url: %w", err)
	}

	tmpl, err := template.New("emails").Parse(templates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &Mailer{
		sender:      sender,
		templates:   tmpl,
		linkBaseURL: linkBaseURL,
		appName:     appName,
	}, nil
}

// VerificationLink builds the link that completes verification for token
func (m *Mailer) VerificationLink(token string) string {
	u, _ := url.Parse(m.linkBaseURL)
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// SendVerification emails the verification link to the account owner
func (m *Mailer) SendVerification(ctx context.Context, to, name, token string) error {
	body, err := m.render("verification", VerificationData{
		Name:    name,
		Link:    m.VerificationLink(token),
		AppName: m.appName,
	})
	if err != nil {
		return fmt.Errorf("failed to render verification template: %w", err)
	}

	if err := m.sender.Send(ctx, to, verificationSubject, body); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

func (m *Mailer) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := m.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
