package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/gomail.v2"

	"DailyDigest/internal/config"
	"DailyDigest/internal/domain"
	"DailyDigest/internal/ports"
)

// ErrMissingCredentials is returned by Open when sender or password is unset.
var ErrMissingCredentials = errors.New("smtp: sender or password is not configured")

// dialer is the part of gomail.Dialer the notifier needs.
type dialer interface {
	Dial() (gomail.SendCloser, error)
}

// SMTPNotifier implements ports.Notifier over an authenticated SMTP relay.
type SMTPNotifier struct {
	sender string
	dialer dialer
	logger *slog.Logger
}

var _ ports.Notifier = (*SMTPNotifier)(nil)

// NewSMTPNotifier builds a notifier from the email settings. Credentials are
// checked lazily in Open so a dry run never needs them.
func NewSMTPNotifier(cfg config.EmailConfig, logger *slog.Logger) *SMTPNotifier {
	n := &SMTPNotifier{sender: cfg.Sender, logger: logger}
	if cfg.Sender != "" && cfg.Password != "" {
		d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.Sender, cfg.Password)
		d.SSL = cfg.SSL
		n.dialer = d
	}
	return n
}

// Open dials the relay once; the returned session reuses the connection for
// every batch until a send fails.
func (n *SMTPNotifier) Open(ctx context.Context) (ports.Session, error) {
	if n.dialer == nil || n.sender == "" {
		return nil, ErrMissingCredentials
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := n.dialer.Dial()
	if err != nil {
		return nil, fmt.Errorf("smtp dial: %w", err)
	}
	if n.logger != nil {
		n.logger.Debug("smtp session opened", "sender", n.sender)
	}
	return &smtpSession{sender: n.sender, dialer: n.dialer, conn: conn, logger: n.logger}, nil
}

type smtpSession struct {
	sender string
	dialer dialer
	conn   gomail.SendCloser
	logger *slog.Logger
}

// Send delivers one message to the whole batch. Recipients go to Bcc so
// subscribers never see each other's addresses.
//
// A rejected RCPT leaves the SMTP transaction open and the relay then refuses
// every further MAIL on that connection, so a failed send drops the
// connection and the next send dials a fresh one.
func (s *smtpSession) Send(ctx context.Context, recipients []string, subject string, body domain.RenderedMessage, attachments []domain.Attachment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(recipients) == 0 {
		return nil
	}

	if s.conn == nil {
		conn, err := s.dialer.Dial()
		if err != nil {
			return fmt.Errorf("smtp redial: %w", err)
		}
		s.conn = conn
	}

	m := buildMessage(s.sender, recipients, subject, body, attachments)
	if err := gomail.Send(s.conn, m); err != nil {
		s.drop()
		return fmt.Errorf("smtp send to %d recipients: %w", len(recipients), err)
	}
	return nil
}

func (s *smtpSession) drop() {
	if s.conn == nil {
		return
	}
	if err := s.conn.Close(); err != nil && s.logger != nil {
		s.logger.Debug("close failed smtp connection", "error", err)
	}
	s.conn = nil
}

func (s *smtpSession) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func buildMessage(sender string, recipients []string, subject string, body domain.RenderedMessage, attachments []domain.Attachment) *gomail.Message {
	m := gomail.NewMessage(gomail.SetCharset("UTF-8"))
	m.SetHeader("From", sender)
	if len(recipients) == 1 {
		m.SetHeader("To", recipients[0])
	} else {
		m.SetHeader("To", sender)
		m.SetHeader("Bcc", recipients...)
	}
	m.SetHeader("Subject", subject)

	switch {
	case body.Text != "" && body.HTML != "":
		m.SetBody("text/plain", body.Text)
		m.AddAlternative("text/html", body.HTML)
	case body.HTML != "":
		m.SetBody("text/html", body.HTML)
	default:
		m.SetBody("text/plain", body.Text)
	}

	for _, a := range attachments {
		data := a.Data
		settings := []gomail.FileSetting{
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if a.ContentType != "" {
			settings = append(settings, gomail.SetHeader(map[string][]string{"Content-Type": {a.ContentType}}))
		}
		m.Attach(a.Name, settings...)
	}
	return m
}
