// Package message provides parsing and serialization of RFC 5322 messages
// for the delivery pipeline.
//
// Headers are modeled as an ordered sequence of (name, value) fields rather
// than a map, since header names repeat and rewrite rules operate on the
// first match by name.
package message

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/emersion/go-message/textproto"
)

var (
	// ErrMalformedMessage indicates the input could not be parsed as a
	// valid message.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrMessageTooLarge indicates the input exceeded the configured
	// maximum message size.
	ErrMessageTooLarge = errors.New("message exceeds maximum size")
)

// Field is a single header field.
type Field struct {
	Name  string
	Value string
}

// Message is a parsed message: ordered header fields plus raw body bytes.
// A Message is owned by a single invocation and is only mutated by the
// rewrite package.
type Message struct {
	Fields []Field
	Body   []byte
}

// ReadAll consumes r up to maxSize bytes and returns the raw message bytes.
// Returns ErrMessageTooLarge if the stream is longer than maxSize.
func ReadAll(r io.Reader, maxSize int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}
	if int64(len(data)) > maxSize {
		return nil, ErrMessageTooLarge
	}
	return data, nil
}

// Parse parses raw message bytes into a Message.
// Returns ErrMalformedMessage (wrapped) when the header section cannot be
// parsed.
func Parse(raw []byte) (*Message, error) {
	br := bufio.NewReader(bytes.NewReader(raw))

	hdr, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	msg := &Message{}
	for f := hdr.Fields(); f.Next(); {
		msg.Fields = append(msg.Fields, Field{Name: f.Key(), Value: f.Value()})
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrMalformedMessage, err)
	}
	msg.Body = body

	return msg, nil
}

// Get returns the value of the first header field matching name
// (case-insensitive) and whether such a field exists.
func (m *Message) Get(name string) (string, bool) {
	for _, f := range m.Fields {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

// Replace sets the value of the first header field matching name
// (case-insensitive). Returns false if no such field exists.
func (m *Message) Replace(name, value string) bool {
	for i, f := range m.Fields {
		if strings.EqualFold(f.Name, name) {
			m.Fields[i].Value = value
			return true
		}
	}
	return false
}

// Append adds a new header field at the end of the header section.
func (m *Message) Append(name, value string) {
	m.Fields = append(m.Fields, Field{Name: name, Value: value})
}

// Sender returns the lowercased address of the message originator, taken
// from the first From header. Returns the empty string when the header is
// missing or unparseable; authorization treats that as an unknown sender.
func (m *Message) Sender() string {
	from, ok := m.Get("From")
	if !ok {
		return ""
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return ""
	}
	return strings.ToLower(addr.Address)
}

// WriteTo serializes the message to w, headers first, then the body.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	var hdr textproto.Header
	// textproto.Header.Add prepends, so build in reverse to keep field order.
	for i := len(m.Fields) - 1; i >= 0; i-- {
		hdr.Add(m.Fields[i].Name, m.Fields[i].Value)
	}

	var buf bytes.Buffer
	if err := textproto.WriteHeader(&buf, hdr); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}
	buf.Write(m.Body)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

// Bytes returns the serialized message.
func (m *Message) Bytes() []byte {
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		// Serialization into a bytes.Buffer cannot fail after parsing
		// succeeded; WriteHeader errors only on writer errors.
		return nil
	}
	return buf.Bytes()
}
