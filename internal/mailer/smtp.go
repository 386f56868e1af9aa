package mailer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/logmailer/internal/model"
)

// Message is a single plain-text mail to one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer sends emails via SMTP. Without an SMTP host it writes messages to
// the log instead.
type Mailer struct {
	mu       sync.RWMutex
	settings model.MailSettings
	logger   *slog.Logger
	sendFn   func(msg Message) error
}

// New returns a Mailer configured with settings.
func New(settings *model.MailSettings, logger *slog.Logger) *Mailer {
	m := &Mailer{logger: logger}
	m.Reconfigure(settings)
	m.sendFn = m.send
	return m
}

// Reconfigure updates the mailer with new settings.
func (m *Mailer) Reconfigure(settings *model.MailSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if settings == nil {
		m.settings = model.MailSettings{}
		return
	}
	m.settings = *settings
}

func (m *Mailer) current() model.MailSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings
}

// Send delivers one message. The result is whatever the transport reports.
func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.sendFn(Message{To: to, Subject: subject, Body: body})
}

func (m *Mailer) send(msg Message) error {
	s := m.current()
	if s.SMTPHost == "" {
		m.logger.Warn("mailer: no SMTP host configured, logging message instead",
			"to", msg.To,
			"subject", msg.Subject,
			"size", humanize.Bytes(uint64(len(msg.Body))),
		)
		m.logger.Debug("mailer: message body", "body", msg.Body)
		return nil
	}

	addr := net.JoinHostPort(s.SMTPHost, strconv.Itoa(s.SMTPPort))
	var auth smtp.Auth
	if s.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.SMTPUser, s.SMTPPass, s.SMTPHost)
	}
	return smtp.SendMail(addr, auth, s.SMTPFromAddress, []string{msg.To}, []byte(m.formatMessage(msg)))
}

func (m *Mailer) formatMessage(msg Message) string {
	s := m.current()
	from := s.SMTPFromAddress
	if s.SMTPFromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.SMTPFromName), s.SMTPFromAddress)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(normalizeNewlines(msg.Body))
	return b.String()
}

// normalizeNewlines converts bare LF line endings to CRLF as SMTP requires.
func normalizeNewlines(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	return strings.ReplaceAll(body, "\n", "\r\n")
}

// ErrNoHost is returned by Ping when mail is only written to the log.
var ErrNoHost = errors.New("mailer: no SMTP host configured")

// Ping dials the configured SMTP server and says HELO.
func (m *Mailer) Ping(ctx context.Context) error {
	s := m.current()
	if s.SMTPHost == "" {
		return ErrNoHost
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.SMTPHost, strconv.Itoa(s.SMTPPort)))
	if err != nil {
		return err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, s.SMTPHost)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()
	return c.Hello("localhost")
}
