// Package mailer delivers multipart notification emails over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	mail "github.com/go-mail/mail/v2"
	"go.uber.org/zap"
)

// Attachment is an in-memory file sent with a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is one rendered email.
type Message struct {
	To          []string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Validate checks the message can be sent.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return errors.New("message has no recipients")
	}
	for _, to := range m.To {
		if strings.TrimSpace(to) == "" {
			return errors.New("message has an empty recipient")
		}
	}
	if m.HTML == "" && m.Text == "" {
		return errors.New("message has no body")
	}
	return nil
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPConfig configures the SMTP dialer.
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	From               string
	StartTLS           bool
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// SMTPSender sends through an SMTP relay, one connection per message.
type SMTPSender struct {
	dialer *mail.Dialer
	from   string
}

// NewSMTPSender builds a sender; Host and From are required.
func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.New("smtp not configured (host and from are required)")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	if cfg.StartTLS {
		d.StartTLSPolicy = mail.MandatoryStartTLS
	}
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}
	if cfg.Timeout > 0 {
		d.Timeout = cfg.Timeout
	}
	return &SMTPSender{dialer: d, from: cfg.From}, nil
}

// Send renders msg as a text/html alternative with attachments and sends it.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := build(s.from, msg)
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail %q: %w", msg.Subject, err)
	}
	return nil
}

func build(from string, msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	for _, att := range msg.Attachments {
		data := att.Data
		settings := []mail.FileSetting{
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if att.ContentType != "" {
			settings = append(settings, mail.SetHeader(map[string][]string{"Content-Type": {att.ContentType}}))
		}
		m.Attach(att.Name, settings...)
	}
	return m
}

// LogSender only logs messages. It is used when SMTP is not configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send logs the envelope.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.logger.Info("mail not sent, smtp disabled",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)),
	)
	return nil
}
