package smtp

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	gosmtp "github.com/emersion/go-smtp"

	"github.com/passwordkeyorg/smtp2datadog/internal/message"
)

type Config struct {
	ListenAddr   string
	Domain       string
	MaxMsgBytes  int64
	MaxRcptCount int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxConns     int
}

type Deps struct {
	Logger  *slog.Logger
	Sink    Sink
	Metrics Metrics
}

// Sink receives every decoded message exactly once. A failed Forward drops
// the message; it never changes the SMTP reply.
type Sink interface {
	Forward(ctx context.Context, rec message.Record) error
	Name() string
}

func Run(ctx context.Context, cfg Config, deps Deps) error {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Sink == nil {
		return fmt.Errorf("sink is required")
	}
	if cfg.Domain == "" {
		cfg.Domain = "smtp2datadog"
	}

	be := &backend{cfg: cfg, deps: deps}
	s := gosmtp.NewServer(be)
	s.Addr = cfg.ListenAddr
	s.Domain = cfg.Domain
	s.ReadTimeout = cfg.ReadTimeout
	s.WriteTimeout = cfg.WriteTimeout
	s.MaxMessageBytes = cfg.MaxMsgBytes

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	defer func() { _ = ln.Close() }()

	if cfg.MaxConns > 0 {
		ln = newLimitListener(ln, cfg.MaxConns)
	}

	// Run in background because Serve blocks.
	errCh := make(chan error, 1)
	go func() {
		deps.Logger.Info("smtp listening",
			"addr", ln.Addr().String(),
			"sink", deps.Sink.Name(),
			"max_msg_bytes", cfg.MaxMsgBytes,
			"max_conns", cfg.MaxConns,
		)
		errCh <- s.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		_ = s.Close()
		return ctx.Err()
	case err := <-errCh:
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "use of closed network connection") {
			return nil
		}
		return err
	}
}

func remoteIPFromConnState(state *gosmtp.Conn) string {
	if state == nil {
		return ""
	}
	c := state.Conn()
	if c == nil {
		return ""
	}
	addr := c.RemoteAddr()
	if addr == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
