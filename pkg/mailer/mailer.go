package mailer

import (
	"bytes"
	"fmt"
	"html/template"

	"gopkg.in/gomail.v2"
)

var resetTemplate = template.Must(template.New("password-reset").Parse(`
<p>Hi {{.Name}},</p>
<p>You requested a password reset for your account. The link below is valid
for one hour:</p>
<p><a href="{{.ResetURL}}">{{.ResetURL}}</a></p>
<p>If you did not request this, you can ignore this message.</p>
`))

// Config holds SMTP connection details.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Mailer sends templated mail over SMTP.
type Mailer struct {
	dialer *gomail.Dialer
	from   string
}

// New creates a Mailer from SMTP settings.
func New(cfg Config) *Mailer {
	return &Mailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// SendPasswordReset delivers the password-reset message containing resetURL.
func (m *Mailer) SendPasswordReset(to, name, resetURL string) error {
	var body bytes.Buffer
	err := resetTemplate.Execute(&body, struct {
		Name     string
		ResetURL string
	}{Name: name, ResetURL: resetURL})
	if err != nil {
		return fmt.Errorf("failed to render reset mail: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Password Reset")
	msg.SetBody("text/html", body.String())

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send reset mail to %s: %w", to, err)
	}
	return nil
}
