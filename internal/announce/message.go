// Package announce turns resolved matches into chat announcements and records
// each one as announced once the sink has accepted it.
package announce

import "context"

// Field is one named block of a message
type Field struct {
	Name   string
	Value  string
	Inline bool
}

// Attachment is a file sent along with a message. Name is the reference the
// message body uses for it.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is the sink-independent form of an announcement
type Message struct {
	Title  string
	Body   string
	Fields []Field
	Color  int
	Footer string
	Image  *Attachment
}

// Notifier delivers messages. A nil error means the sink accepted the message.
type Notifier interface {
	Send(ctx context.Context, msg *Message) error
}
