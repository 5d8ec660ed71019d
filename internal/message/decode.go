package message

import (
	"bytes"
	"io"
	"mime"
	"net/mail"
	"slices"
	"strings"

	"github.com/jhillyerd/enmime"
)

const (
	ctTextPlain     = "text/plain"
	replacementChar = "\uFFFD"
)

var wordDecoder = new(mime.WordDecoder)

// content holds the fields read from the payload itself.
type content struct {
	from    string
	to      string
	subject string
	date    string
	body    string
}

// Decode maps an envelope to a Record. It never fails: anything that cannot
// be parsed leaves the corresponding field empty, and From/To fall back to
// the envelope when the headers do not carry them.
func Decode(env Envelope) Record {
	c := parse(env.Data)

	rec := Record{
		From:       clean(c.from),
		To:         clean(c.to),
		Subject:    clean(c.subject),
		Body:       normalizeBody(c.body),
		Date:       clean(c.date),
		Recipients: slices.Clone(env.Recipients),
		MailFrom:   env.MailFrom,
	}
	if rec.From == "" {
		rec.From = env.MailFrom
	}
	if rec.To == "" && len(env.Recipients) > 0 {
		rec.To = env.Recipients[0]
	}
	return rec
}

func parse(raw []byte) (c content) {
	if len(raw) == 0 {
		return content{}
	}
	defer func() {
		if recover() != nil {
			c = content{}
		}
	}()
	// A payload that does not open with a header field has no header block;
	// all of it is the body.
	if !startsWithHeader(raw) {
		return content{body: string(raw)}
	}
	if mc, ok := parseMIME(raw); ok {
		return mc
	}
	return parseHeaders(raw)
}

// parseMIME reads the payload with enmime, which takes care of encoded words,
// transfer encodings and charset conversion.
func parseMIME(raw []byte) (content, bool) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil || env.Root == nil {
		return content{}, false
	}
	return content{
		from:    env.GetHeader("From"),
		to:      env.GetHeader("To"),
		subject: env.GetHeader("Subject"),
		date:    env.GetHeader("Date"),
		body:    textBody(env.Root),
	}, true
}

// textBody returns the content of a single-part plain text message, or of the
// first text/plain part of a multipart message in document order.
func textBody(root *enmime.Part) string {
	if root.FirstChild == nil && !strings.HasPrefix(root.ContentType, "multipart/") {
		if root.ContentType == "" || root.ContentType == ctTextPlain {
			return string(root.Content)
		}
		return ""
	}
	p := root.DepthMatchFirst(func(p *enmime.Part) bool {
		return p.ContentType == ctTextPlain && p.Disposition != "attachment"
	})
	if p == nil {
		return ""
	}
	return string(p.Content)
}

// parseHeaders is the fallback for payloads enmime rejects. Headers are read
// with net/mail and the body is taken verbatim when it is declared as plain text.
func parseHeaders(raw []byte) content {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return content{}
	}

	c := content{
		from:    decodeHeader(msg.Header.Get("From")),
		to:      decodeHeader(msg.Header.Get("To")),
		subject: decodeHeader(msg.Header.Get("Subject")),
		date:    msg.Header.Get("Date"),
	}

	ct := msg.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if ct == "" || (err == nil && mediaType == ctTextPlain) {
		if body, err := io.ReadAll(msg.Body); err == nil {
			c.body = string(body)
		}
	}
	return c
}

// startsWithHeader reports whether the first line of raw is empty (an empty
// header block) or a "name:" header field.
func startsWithHeader(raw []byte) bool {
	line, _, _ := bytes.Cut(raw, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return true
	}
	name, _, ok := bytes.Cut(line, []byte(":"))
	if !ok || len(name) == 0 {
		return false
	}
	for _, b := range name {
		if b <= ' ' || b > '~' {
			return false
		}
	}
	return true
}

// decodeHeader decodes RFC 2047 encoded words, keeping the raw value when
// decoding fails.
func decodeHeader(v string) string {
	if v == "" {
		return ""
	}
	decoded, err := wordDecoder.DecodeHeader(v)
	if err != nil {
		return v
	}
	return decoded
}

func clean(s string) string {
	return strings.ToValidUTF8(strings.TrimSpace(s), replacementChar)
}

// normalizeBody converts CRLF line endings to LF and drops the line terminator
// that SMTP DATA always leaves at the end of the payload.
func normalizeBody(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimRight(s, "\n")
	return strings.ToValidUTF8(s, replacementChar)
}
