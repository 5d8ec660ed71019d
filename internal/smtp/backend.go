package smtp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/mail"
	"slices"
	"time"

	gosmtp "github.com/emersion/go-smtp"

	"github.com/passwordkeyorg/smtp2datadog/internal/message"
)

// statusError is implemented by sink errors that carry an HTTP status.
type statusError interface {
	error
	HTTPStatus() int
}

type backend struct {
	cfg  Config
	deps Deps
}

func (b *backend) NewSession(conn *gosmtp.Conn) (gosmtp.Session, error) {
	ip := remoteIPFromConnState(conn)
	sess := &session{backend: b, remoteIP: ip, log: b.deps.Logger.With("remote_ip", ip)}
	if b.deps.Metrics != nil {
		b.deps.Metrics.ConnOpen()
		sess.onClose = b.deps.Metrics.ConnClose
	}
	return sess, nil
}

type session struct {
	backend  *backend
	remoteIP string
	log      *slog.Logger

	mailFrom string
	rcpt     []string

	onClose func()
}

func (s *session) Reset() {
	s.mailFrom = ""
	s.rcpt = nil
}

func (s *session) Logout() error {
	if s.onClose != nil {
		s.onClose()
	}
	return nil
}

func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	// Accept empty reverse-path for bounces
	if from != "" {
		if _, err := mail.ParseAddress(from); err != nil {
			s.reject("invalid_mail_from")
			return &gosmtp.SMTPError{Code: 501, Message: "invalid MAIL FROM"}
		}
	}
	s.mailFrom = from
	return nil
}

func (s *session) Rcpt(to string, opts *gosmtp.RcptOptions) error {
	if limit := s.backend.cfg.MaxRcptCount; limit > 0 && len(s.rcpt) >= limit {
		s.reject("too_many_rcpt")
		return &gosmtp.SMTPError{Code: 452, Message: "too many recipients"}
	}
	if _, err := mail.ParseAddress(to); err != nil {
		s.reject("invalid_rcpt")
		return &gosmtp.SMTPError{Code: 501, Message: "invalid RCPT TO"}
	}
	s.rcpt = append(s.rcpt, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	if len(s.rcpt) == 0 {
		return &gosmtp.SMTPError{Code: 503, Message: "need RCPT TO first"}
	}
	received := time.Now()
	traceID := newTraceID(received)

	// A partial payload is never forwarded.
	raw, err := io.ReadAll(r)
	if err != nil {
		if errors.Is(err, gosmtp.ErrDataTooLarge) {
			s.reject("too_large")
		} else {
			s.reject("read_error")
		}
		s.log.Warn("message read failed", "trace_id", traceID, "err", err)
		return err
	}

	rec := message.Decode(message.Envelope{
		MailFrom:   s.mailFrom,
		Recipients: slices.Clone(s.rcpt),
		Data:       raw,
	})
	if s.backend.deps.Metrics != nil {
		s.backend.deps.Metrics.IncAccepted(int64(len(raw)))
	}
	log := s.log.With("trace_id", traceID)
	log.Info("message accepted",
		"mail_from", rec.MailFrom,
		"rcpt_count", len(rec.Recipients),
		"subject", rec.Subject,
		"bytes", len(raw),
	)

	sink := s.backend.deps.Sink
	start := time.Now()
	err = sink.Forward(context.Background(), rec)
	elapsed := time.Since(start)
	if s.backend.deps.Metrics != nil {
		s.backend.deps.Metrics.ObserveForward(sink.Name(), elapsed, err)
	}
	if err != nil {
		attrs := []any{"sink", sink.Name(), "err", err, "duration_ms", elapsed.Milliseconds()}
		var se statusError
		if errors.As(err, &se) && se.HTTPStatus() != 0 {
			attrs = append(attrs, "status", se.HTTPStatus())
		}
		log.Error("forward failed", attrs...)
		return nil
	}
	log.Info("message forwarded",
		"sink", sink.Name(),
		"duration_ms", elapsed.Milliseconds(),
		"total_ms", time.Since(received).Milliseconds(),
	)
	return nil
}

func (s *session) reject(reason string) {
	if s.backend.deps.Metrics != nil {
		s.backend.deps.Metrics.IncRejected(reason)
	}
}
