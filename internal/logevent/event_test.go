package logevent

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passwordkeyorg/smtp2datadog/internal/message"
)

var fixedNow = time.Date(2026, 2, 14, 9, 30, 15, 123456789, time.FixedZone("CET", 3600))

func TestNew_Envelope(t *testing.T) {
	t.Parallel()

	rec := message.Record{
		From:       "sender@example.com",
		To:         "recipient@example.com",
		Subject:    "Test Email",
		Body:       "This is a test message",
		Recipients: []string{"recipient@example.com"},
		MailFrom:   "sender@example.com",
	}
	ev := New(rec, Meta{Service: "smtp2datadog", Env: "production"}, fixedNow)

	assert.Equal(t, "smtp", ev.DDSource)
	assert.Equal(t, "service:smtp2datadog,env:production", ev.DDTags)
	assert.Equal(t, "example.com", ev.Hostname)
	assert.Equal(t, "smtp2datadog", ev.Service)
	assert.Equal(t, "Email from sender@example.com: Test Email", ev.Message)
	assert.Equal(t, rec, ev.Email)
	assert.Equal(t, "2026-02-14T08:30:15.123456Z", ev.Timestamp)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, subject, want string
	}{
		{"a@example.com", "hi", "Email from a@example.com: hi"},
		{"a@example.com", "", "Email from a@example.com: "},
		{"", "", "Email from : "},
		{"Alice <a@example.com>", "re: re: x", "Email from Alice <a@example.com>: re: re: x"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Summary(message.Record{From: tc.from, Subject: tc.subject}))
	}
}

func TestTags(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "service:svc,env:staging", Tags(Meta{Service: "svc", Env: "staging"}))
	assert.Equal(t, "service:svc,env:dev,team:mail,region:eu",
		Tags(Meta{Service: "svc", Env: "dev", Tags: []string{"team:mail", " ", " region:eu "}}))
}

func TestHostname(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "example.com", Hostname("sender@example.com", "fallback"))
	assert.Equal(t, "mail.example.org", Hostname("Bob <bob@Mail.Example.org>", "fallback"))
	assert.Equal(t, "example.net", Hostname("not really <x@example.net", "fallback"))
	assert.Equal(t, "fallback", Hostname("no-at-sign", "fallback"))
	assert.Equal(t, "fallback", Hostname("", "fallback"))
	assert.Equal(t, DefaultHostname, Hostname("", ""))
}

func TestNew_EmptyRecord(t *testing.T) {
	t.Parallel()

	ev := New(message.Record{}, Meta{Service: "s", Env: "e", Hostname: "relay-1"}, fixedNow)

	assert.Equal(t, "relay-1", ev.Hostname)
	assert.Equal(t, "Email from : ", ev.Message)

	b, err := ev.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"recipients":[]`)
}

func TestMarshal_RoundTrip(t *testing.T) {
	t.Parallel()

	ev := New(message.Record{
		From:       "Zoë <zoe@example.com>",
		To:         "a@example.com",
		Subject:    "<script>&co</script>",
		Body:       "line 1\nline 2\t\"quoted\"",
		Date:       "Sat, 14 Feb 2026 09:30:15 +0100",
		Recipients: []string{"a@example.com", "b@example.com"},
		MailFrom:   "zoe@example.com",
	}, Meta{Service: "svc", Env: "prod", Tags: []string{"k:v"}}, fixedNow)

	b, err := ev.Marshal()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, ev, got)
}

func TestMarshal_WireFieldNames(t *testing.T) {
	t.Parallel()

	b, err := New(message.Record{From: "a@example.com"}, Meta{}, fixedNow).Marshal()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	for _, k := range []string{"ddsource", "ddtags", "hostname", "service", "message", "email", "timestamp"} {
		assert.Contains(t, m, k)
	}
	email, ok := m["email"].(map[string]any)
	require.True(t, ok)
	for _, k := range []string{"from", "to", "subject", "body", "date", "recipients", "mail_from"} {
		assert.Contains(t, email, k)
	}
}
