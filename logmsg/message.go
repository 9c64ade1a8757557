// Package logmsg defines the immutable log record shipped by the writer core.
package logmsg

import "time"

// Message is a single log record: a timestamp plus its UTF-8 payload.
// Immutable after construction except for Truncate, which returns a new
// value rather than mutating the receiver in place.
type Message struct {
	timestamp time.Time
	text      string
	bytes     []byte
}

// New constructs a Message from text, stamping it with the given time.
func New(timestamp time.Time, text string) Message {
	return Message{
		timestamp: timestamp,
		text:      text,
		bytes:     []byte(text),
	}
}

// Timestamp returns the message's logical time.
func (m Message) Timestamp() time.Time { return m.timestamp }

// Text returns the decoded message text.
func (m Message) Text() string { return m.text }

// Bytes returns the UTF-8 encoding of Text.
func (m Message) Bytes() []byte { return m.bytes }

// Size returns len(Bytes()).
func (m Message) Size() int { return len(m.bytes) }

// Less reports whether m sorts before other by timestamp. Used with
// sort.SliceStable so messages sharing a timestamp keep arrival order.
func (m Message) Less(other Message) bool { return m.timestamp.Before(other.timestamp) }

// isContinuationByte reports whether b is a UTF-8 continuation byte (10xxxxxx).
func isContinuationByte(b byte) bool { return b&0xC0 == 0x80 }

// isLeadByte reports whether b starts a multi-byte UTF-8 sequence (11xxxxxx).
func isLeadByte(b byte) bool { return b&0xC0 == 0xC0 }

// Truncate returns a copy of m whose Bytes() is at most maxBytes long,
// without splitting a UTF-8 sequence. It scans backward from maxBytes,
// skipping continuation bytes; if the byte it lands on is a lead byte, that
// byte is dropped too since its continuation bytes were already cut. Text is
// re-derived from the shortened byte slice. If maxBytes >= m.Size(), m is
// returned unchanged.
func (m Message) Truncate(maxBytes int) Message {
	if maxBytes >= len(m.bytes) {
		return m
	}
	if maxBytes <= 0 {
		return Message{timestamp: m.timestamp, text: "", bytes: []byte{}}
	}

	cut := maxBytes
	for cut > 0 && isContinuationByte(m.bytes[cut-1]) {
		cut--
	}
	if cut > 0 && isLeadByte(m.bytes[cut-1]) {
		cut--
	}

	truncated := make([]byte, cut)
	copy(truncated, m.bytes[:cut])

	return Message{
		timestamp: m.timestamp,
		text:      string(truncated),
		bytes:     truncated,
	}
}
