// Package message turns what an SMTP transaction delivered into a normalized
// email record.
package message

// Envelope is one message as received over SMTP: the reverse-path, the
// accepted recipients in RCPT order, and the raw DATA payload.
type Envelope struct {
	MailFrom   string
	Recipients []string
	Data       []byte
}

// Record is the decoded, protocol-independent view of a message. The JSON
// names are part of the log event wire format.
type Record struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	Date       string   `json:"date"`
	Recipients []string `json:"recipients"`
	MailFrom   string   `json:"mail_from"`
}
