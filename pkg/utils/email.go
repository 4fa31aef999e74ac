package utils

import (
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/chachabrian/wheelster-backend/internal/config"
)

const companyName = "Wheelster"

// Common header template for all emails
const emailHeader = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; margin: 0; padding: 0;">
	<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
		<div style="text-align: center; margin-bottom: 30px; background-color: #f9f9f9; padding: 20px;">
			<h2 style="color: #1e88e5; margin: 0;">Wheelster</h2>
		</div>
`

// Common footer template for all emails
const emailFooter = `
		<div style="text-align: center; margin-top: 20px; font-size: 12px; color: #666; border-top: 1px solid #eee; padding-top: 20px;">
			<p>This is an automated message, please do not reply to this email.</p>
			<p>&copy; Wheelster. All rights reserved.</p>
		</div>
	</div>
</body>
</html>
`

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer delivers HTML mail over SMTP with PLAIN auth.
type Mailer struct {
	cfg      config.SMTPConfig
	sendMail sendMailFunc
}

func NewMailer(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg, sendMail: smtp.SendMail}
}

func (m *Mailer) Enabled() bool {
	return m != nil && m.cfg.Enabled()
}

func (m *Mailer) Send(to []string, subject, body string) error {
	if !m.Enabled() {
		return fmt.Errorf("email configuration not set")
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}

	var auth smtp.Auth
	if m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)
	}
	msg := buildMessage(m.cfg.From, to, subject, body)
	return m.sendMail(m.cfg.Host+":"+m.cfg.Port, auth, m.cfg.From, to, msg)
}

// buildMessage renders the RFC 5322 headers in a fixed order followed by
// the HTML body.
func buildMessage(from string, to []string, subject, body string) []byte {
	headers := [][2]string{
		{"From", fmt.Sprintf("%s <%s>", companyName, from)},
		{"To", strings.Join(to, ",")},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
		{"X-Mailer", "Wheelster-Mailer"},
	}

	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// RenderEmail wraps a heading and paragraphs in the branded layout. Text
// is HTML escaped.
func RenderEmail(heading, greeting string, paragraphs ...string) string {
	var b strings.Builder
	b.WriteString(emailHeader)
	b.WriteString(`		<div style="background-color: #f9f9f9; padding: 20px; border-radius: 5px;">` + "\n")
	fmt.Fprintf(&b, `			<h1 style="color: #2c3e50; text-align: center;">%s</h1>`+"\n", html.EscapeString(heading))
	fmt.Fprintf(&b, "			<p>%s</p>\n", html.EscapeString(greeting))
	for _, p := range paragraphs {
		fmt.Fprintf(&b, "			<p>%s</p>\n", html.EscapeString(p))
	}
	b.WriteString("			<p>Best regards,<br>The Wheelster Team</p>\n")
	b.WriteString("		</div>\n")
	b.WriteString(emailFooter)
	return b.String()
}
