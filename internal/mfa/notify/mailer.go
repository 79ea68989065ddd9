package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/quollhq/aegis/internal/mfa/domain"
)

// Mailer delivers verification codes by email over plain SMTP. It speaks
// STARTTLS when the server offers it and authenticates only when
// credentials are configured, which keeps it usable against local
// capture servers like MailHog.
type Mailer struct {
	host string
	port int
	user string
	pass string
	from string

	// InsecureSkipVerify disables TLS certificate checks. Dev only.
	InsecureSkipVerify bool
}

func NewMailer(host string, port int, user, pass, from string) *Mailer {
	return &Mailer{host: host, port: port, user: user, pass: pass, from: from}
}

func (m *Mailer) Send(ctx context.Context, _ domain.FactorType, destination, code string, purpose domain.ChallengePurpose) error {
	subject, body := renderEmail(code, purpose)
	if err := m.send(ctx, destination, subject, body); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	return nil
}

func renderEmail(code string, purpose domain.ChallengePurpose) (subject, body string) {
	switch purpose {
	case domain.PurposeEnroll:
		subject = "Confirm your verification method"
		body = fmt.Sprintf(
			"<h2>Confirm your verification method</h2><p>Your code: <b>%s</b></p><p>The code expires in 5 minutes.</p>", code)
	default:
		subject = "Your sign-in code"
		body = fmt.Sprintf(
			"<h2>Sign-in verification</h2><p>Your code: <b>%s</b></p><p>The code expires in 10 minutes.</p>", code)
	}
	return subject, body
}

func (m *Mailer) send(ctx context.Context, to, subject, htmlBody string) error {
	var sb strings.Builder
	for _, h := range [][2]string{
		{"From", m.from},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	} {
		sb.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	sb.WriteString("\r\n")
	sb.WriteString(htmlBody)

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return err
	}
	defer func() { _ = c.Quit() }()

	if err := c.Hello("localhost"); err != nil {
		return err
	}

	if ok, _ := c.Extension("STARTTLS"); ok {
		cfg := &tls.Config{
			ServerName:         m.host,
			InsecureSkipVerify: m.InsecureSkipVerify,
		}
		if err := c.StartTLS(cfg); err != nil {
			return err
		}
		// EHLO again so the extension list reflects the TLS session.
		if err := c.Hello("localhost"); err != nil {
			return err
		}
	}

	if m.user != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			auth := smtp.PlainAuth("", m.user, m.pass, m.host)
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(sb.String())); err != nil {
		return err
	}
	return w.Close()
}
