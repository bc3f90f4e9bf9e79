package client

import (
	"errors"
	"time"
)

// Attachment is a file attached to an outgoing message. Content is the
// base64-encoded payload; Size is the decoded byte count.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
	Size        int64  `json:"size"`
}

// SendRequest describes one outgoing message. It is immutable once passed
// to the client: the client never mutates it and the caller must not
// modify it while a Send is in flight.
type SendRequest struct {
	To          []string     `json:"to"`
	Cc          []string     `json:"cc,omitempty"`
	Bcc         []string     `json:"bcc,omitempty"`
	Subject     string       `json:"subject"`
	TextBody    string       `json:"body,omitempty"`
	HTMLBody    string       `json:"html_body,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Tag         string       `json:"tag,omitempty"`
}

// Validate checks the request before any network call is made.
func (r *SendRequest) Validate() error {
	if len(r.To) == 0 {
		return errors.New("send request requires at least one recipient")
	}
	if r.TextBody == "" && r.HTMLBody == "" {
		return errors.New("send request requires a plain or HTML body")
	}
	return nil
}

// DeliveryHandle is the per-recipient delivery record returned by the API.
type DeliveryHandle struct {
	ID    int64  `json:"id"`
	Token string `json:"token"`
}

// SendResult is produced only on a successful round trip; it is never
// partially populated.
type SendResult struct {
	// MessageID is the upstream's opaque identifier for the message.
	MessageID string `json:"message_id"`

	// Recipients maps each recipient address to its delivery handle.
	Recipients map[string]DeliveryHandle `json:"recipients"`
}

// Message is a fetched message, as returned by GetMessage.
type Message struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	Subject    string    `json:"subject"`
	TextBody   string    `json:"body,omitempty"`
	HTMLBody   string    `json:"html_body,omitempty"`
	Tag        string    `json:"tag,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// InboxEntry is one row of an inbox listing.
type InboxEntry struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	Unread     bool      `json:"unread"`
}
