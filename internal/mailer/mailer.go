// Package mailer renders and sends registrant emails.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/blessbox/backend/internal/models"
)

// Message is a rendered email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// TemplateData is what email templates can reference.
type TemplateData struct {
	Name       string
	EventName  string
	CheckInURL string
}

type templates struct {
	subject string
	html    *htmltemplate.Template
	text    *texttemplate.Template
}

var byType = map[string]templates{
	models.EmailTypeRegistrationConfirmation: {
		subject: "You're registered: {{.EventName}}",
		html: htmltemplate.Must(htmltemplate.New("confirmation").Parse(`<p>Hi{{if .Name}} {{.Name}}{{end}},</p>
<p>Thanks for registering for <strong>{{.EventName}}</strong>.</p>
<p>Show this link or its QR code at check-in:<br><a href="{{.CheckInURL}}">{{.CheckInURL}}</a></p>`)),
		text: texttemplate.Must(texttemplate.New("confirmation").Parse(`Hi{{if .Name}} {{.Name}}{{end}},

Thanks for registering for {{.EventName}}.

Show this link or its QR code at check-in:
{{.CheckInURL}}
`)),
	},
	models.EmailTypeCheckInReminder: {
		subject: "Reminder: your check-in code for {{.EventName}}",
		html: htmltemplate.Must(htmltemplate.New("reminder").Parse(`<p>Hi{{if .Name}} {{.Name}}{{end}},</p>
<p>A reminder that your check-in code for <strong>{{.EventName}}</strong> is ready:<br><a href="{{.CheckInURL}}">{{.CheckInURL}}</a></p>`)),
		text: texttemplate.Must(texttemplate.New("reminder").Parse(`Hi{{if .Name}} {{.Name}}{{end}},

A reminder that your check-in code for {{.EventName}} is ready:
{{.CheckInURL}}
`)),
	},
}

// Render builds the message for an email type.
func Render(emailType, to string, data TemplateData) (Message, error) {
	t, ok := byType[emailType]
	if !ok {
		return Message{}, fmt.Errorf("unknown email type %q", emailType)
	}
	subject, err := texttemplate.New("subject").Parse(t.subject)
	if err != nil {
		return Message{}, err
	}
	var s, h, txt bytes.Buffer
	if err := subject.Execute(&s, data); err != nil {
		return Message{}, fmt.Errorf("render subject: %w", err)
	}
	if err := t.html.Execute(&h, data); err != nil {
		return Message{}, fmt.Errorf("render html: %w", err)
	}
	if err := t.text.Execute(&txt, data); err != nil {
		return Message{}, fmt.Errorf("render text: %w", err)
	}
	return Message{To: to, ToName: data.Name, Subject: s.String(), HTMLBody: h.String(), TextBody: txt.String()}, nil
}
