// Package mail renders and delivers transactional email.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*
var templateFS embed.FS

// Template names a transactional message layout.
type Template string

const (
	TemplateVerifyEmail   Template = "verify_email"
	TemplateResetPassword Template = "reset_password"
)

var subjects = map[Template]string{
	TemplateVerifyEmail:   "Confirm your email",
	TemplateResetPassword: "Password Reset Request",
}

// Message is a rendered email ready for delivery.
type Message struct {
	To       string
	Subject  string
	Template Template
	Text     string
	HTML     string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Renderer turns a template and its data into a Message.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &Renderer{html: html, text: text}, nil
}

// Render builds a message for to. The HTML part is optional per template.
func (r *Renderer) Render(to string, tmpl Template, data any) (Message, error) {
	subject, ok := subjects[tmpl]
	if !ok {
		return Message{}, fmt.Errorf("unknown template %q", tmpl)
	}
	msg := Message{To: to, Subject: subject, Template: tmpl}

	var buf bytes.Buffer
	if err := r.text.ExecuteTemplate(&buf, string(tmpl)+".txt", data); err != nil {
		return Message{}, fmt.Errorf("render %s text: %w", tmpl, err)
	}
	msg.Text = buf.String()

	if r.html.Lookup(string(tmpl)+".html") != nil {
		buf.Reset()
		if err := r.html.ExecuteTemplate(&buf, string(tmpl)+".html", data); err != nil {
			return Message{}, fmt.Errorf("render %s html: %w", tmpl, err)
		}
		msg.HTML = buf.String()
	}
	return msg, nil
}
