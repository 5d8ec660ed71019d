// Command sendtest submits one sample message to a running smtp2datadog.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"net"
	"os"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"github.com/joho/godotenv"
)

type sample struct {
	From    string
	To      string
	Subject string
	Text    string
}

func main() {
	_ = godotenv.Load()

	host := flag.String("host", getenv("SMTP_HOST", "localhost"), "smtp2datadog host")
	port := flag.String("port", getenv("SMTP_PORT", "1025"), "smtp2datadog port")
	from := flag.String("from", "sender@example.com", "sender address")
	to := flag.String("to", "recipient@example.com", "recipient address")
	subject := flag.String("subject", "Test Email from SMTP2Datadog", "subject line")
	flag.Parse()

	addr := net.JoinHostPort(*host, *port)
	err := send(addr, sample{
		From:    *from,
		To:      *to,
		Subject: *subject,
		Text:    "This is a test email sent to verify the SMTP2Datadog integration.\n",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to send test email: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("test email sent to %s\n", addr)
}

func send(addr string, s sample) error {
	msg, err := enmime.Builder().
		From("", s.From).
		To("", s.To).
		Subject(s.Subject).
		Text([]byte(s.Text)).
		Build()
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	var buf bytes.Buffer
	if err := msg.Encode(&buf); err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	c, err := gosmtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer func() { _ = c.Close() }()

	if err := c.SendMail(s.From, []string{s.To}, &buf); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return c.Quit()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
