// Package logevent builds the structured log event that carries one decoded
// email to the log intake. Every sink encodes the same shape.
package logevent

import (
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/passwordkeyorg/smtp2datadog/internal/message"
)

const (
	// Source is the ddsource attribute of every event.
	Source = "smtp"

	// TimestampLayout is UTC with microsecond precision.
	TimestampLayout = "2006-01-02T15:04:05.000000Z"

	// DefaultHostname is used when neither the sender nor Meta gives a hostname.
	DefaultHostname = "unknown"
)

// Meta is the per-process part of an event, fixed at startup.
type Meta struct {
	Service  string
	Env      string
	Hostname string   // used when the sender address has no domain
	Tags     []string // extra key:value tags appended to ddtags
}

// Event is the wire shape accepted by the log intake.
type Event struct {
	DDSource  string         `json:"ddsource"`
	DDTags    string         `json:"ddtags"`
	Hostname  string         `json:"hostname"`
	Service   string         `json:"service"`
	Message   string         `json:"message"`
	Email     message.Record `json:"email"`
	Timestamp string         `json:"timestamp"`
}

// New assembles the event for rec at instant now.
func New(rec message.Record, meta Meta, now time.Time) Event {
	if rec.Recipients == nil {
		rec.Recipients = []string{}
	}
	return Event{
		DDSource:  Source,
		DDTags:    Tags(meta),
		Hostname:  Hostname(rec.From, meta.Hostname),
		Service:   meta.Service,
		Message:   Summary(rec),
		Email:     rec,
		Timestamp: now.UTC().Format(TimestampLayout),
	}
}

// Summary is the one-line human readable message of the event.
func Summary(rec message.Record) string {
	return "Email from " + rec.From + ": " + rec.Subject
}

// Tags renders ddtags: service and env first, then the configured extras.
func Tags(meta Meta) string {
	tags := make([]string, 0, 2+len(meta.Tags))
	tags = append(tags, "service:"+meta.Service, "env:"+meta.Env)
	for _, t := range meta.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return strings.Join(tags, ",")
}

// Hostname derives the event hostname from the domain of the sender address.
func Hostname(from, fallback string) string {
	addr := from
	if a, err := mail.ParseAddress(from); err == nil {
		addr = a.Address
	}
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		if domain := strings.Trim(addr[i+1:], " <>"); domain != "" {
			return strings.ToLower(domain)
		}
	}
	if fallback != "" {
		return fallback
	}
	return DefaultHostname
}

// Marshal encodes the event as compact JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
