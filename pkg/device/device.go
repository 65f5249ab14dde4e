// Package device defines the message channel to the external glasses
// display: the wire framing for text updates and the [Link] interface the
// pipeline sends through.
//
// The physical transport (BLE pairing, MTU negotiation, retries) is owned by
// a separate bridge process; implementations of [Link] only need to deliver
// already-framed messages over a reliable, ordered channel.
package device

import "context"

// Message codes understood by the display firmware. The code is the first
// byte of every frame; the rest is the payload.
const (
	// CodePlainText is a plain text update: the UTF-8 payload replaces the
	// currently shown text.
	CodePlainText byte = 0x0b
)

// clearPayload blanks the display. The firmware treats a single space as
// "show nothing" while an empty payload is ignored.
const clearPayload = " "

// Message is one framed update for the display.
type Message struct {
	Code    byte
	Payload []byte
}

// PlainText returns a text-update message for s.
func PlainText(s string) Message {
	return Message{Code: CodePlainText, Payload: []byte(s)}
}

// Clear returns the message that blanks the display.
func Clear() Message {
	return PlainText(clearPayload)
}

// Encode frames the message as one code byte followed by the payload.
func (m Message) Encode() []byte {
	buf := make([]byte, 1+len(m.Payload))
	buf[0] = m.Code
	copy(buf[1:], m.Payload)
	return buf
}

// Link is a reliable, ordered message channel to the display.
//
// Send blocks until the message has been handed to the transport or ctx is
// done; the transport owns all queuing and flow control beyond that.
// Implementations must be safe for use from a single sender goroutine.
type Link interface {
	Send(ctx context.Context, msg Message) error
	Connected() bool
	Close() error
}

// Notifier is implemented by Links that can report connectivity changes.
// The callback may be invoked from an internal goroutine and must not block.
type Notifier interface {
	OnConnectionChange(fn func(connected bool))
}
