// Package sink hands finished documents to their destination. The core's
// obligation ends at a complete document string plus routing metadata; these
// adapters are thin.
package sink

import (
	"context"
	"fmt"
	"log"

	gomail "gopkg.in/gomail.v2"

	"github.com/pmajor/intake/config"
	"github.com/pmajor/intake/internal/telemetry"
)

// Meta is the routing metadata collected alongside the document.
type Meta struct {
	To      string
	Subject string
}

// Sink delivers an assembled document.
type Sink interface {
	Deliver(ctx context.Context, document string, meta Meta) error
}

// NewSink picks the mail sink when SMTP is configured, otherwise the log
// sink.
func NewSink(cfg config.MailConfig, logger *log.Logger) Sink {
	if logger == nil {
		logger = telemetry.NewLogger("SINK")
	}
	if cfg.Host == "" {
		return &LogSink{logger: logger}
	}
	return &MailSink{cfg: cfg, logger: logger}
}

// LogSink records the delivery instead of sending anything; used when no
// SMTP host is configured.
type LogSink struct {
	logger *log.Logger
}

func (s *LogSink) Deliver(ctx context.Context, document string, meta Meta) error {
	s.logger.Printf("delivery skipped (no SMTP configured): to=%q subject=%q size=%d", meta.To, meta.Subject, len(document))
	return nil
}

// MailSink composes the document as a plain-text mail draft and sends it via
// the configured SMTP host.
type MailSink struct {
	cfg    config.MailConfig
	logger *log.Logger
}

func (s *MailSink) Deliver(ctx context.Context, document string, meta Meta) error {
	if meta.To == "" {
		return fmt.Errorf("no destination address in routing metadata")
	}
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", meta.To)
	m.SetHeader("Subject", meta.Subject)
	m.SetBody("text/plain", document)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("sending mail to %s: %w", meta.To, err)
	}
	s.logger.Printf("document delivered to %s", meta.To)
	return nil
}
