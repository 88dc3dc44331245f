package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/*
var templateFS embed.FS

// Renderer renders a named email template set: <name>_subject.txt, <name>.html and <name>.txt.
type Renderer struct{}

// NewRenderer returns a renderer over the embedded templates.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render executes the named templates with data.
func (r *Renderer) Render(name string, data any) (subject, htmlBody, textBody string, err error) {
	subject, err = r.renderFile(name+"_subject.txt", data, false)
	if err != nil {
		return "", "", "", fmt.Errorf("render subject: %w", err)
	}
	htmlBody, err = r.renderFile(name+".html", data, true)
	if err != nil {
		return "", "", "", fmt.Errorf("render html: %w", err)
	}
	textBody, err = r.renderFile(name+".txt", data, false)
	if err != nil {
		return "", "", "", fmt.Errorf("render text: %w", err)
	}
	return strings.TrimSpace(subject), htmlBody, textBody, nil
}

func (r *Renderer) renderFile(name string, data any, html bool) (string, error) {
	raw, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if html {
		t, err := template.New(name).Option("missingkey=zero").Parse(string(raw))
		if err != nil {
			return "", err
		}
		if err := t.Execute(&buf, data); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
	t, err := texttemplate.New(name).Option("missingkey=zero").Parse(string(raw))
	if err != nil {
		return "", err
	}
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// JoinConfirmationData fills the join_confirmation templates.
type JoinConfirmationData struct {
	Name       string
	EventTitle string
	EventDate  string
	EventTime  string
	Location   string
	TicketCode string
}

// EventReminderData fills the event_reminder templates.
type EventReminderData struct {
	Name       string
	EventTitle string
	EventDate  string
	EventTime  string
	Location   string
	TicketCode string
}

// OTPData fills the otp templates.
type OTPData struct {
	Code             string
	ExpiresInMinutes int
}

// PasswordResetData fills the password_reset templates.
type PasswordResetData struct {
	Name             string
	ResetLink        string
	ExpiresInMinutes int
}
