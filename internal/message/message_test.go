package message

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const sampleMessage = "From: Alice <alice@example.com>\r\n" +
	"To: list@example.com\r\n" +
	"Received: from a.example.com\r\n" +
	"Received: from b.example.com\r\n" +
	"Subject: hello\r\n" +
	"\r\n" +
	"body line one\r\nbody line two\r\n"

func TestParse(t *testing.T) {
	msg, err := Parse([]byte(sampleMessage))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(msg.Fields) != 5 {
		t.Fatalf("expected 5 header fields, got %d", len(msg.Fields))
	}

	if msg.Fields[0].Name != "From" {
		t.Errorf("first field = %q, want 'From'", msg.Fields[0].Name)
	}

	if got := string(msg.Body); got != "body line one\r\nbody line two\r\n" {
		t.Errorf("body = %q", got)
	}
}

func TestParsePreservesDuplicateOrder(t *testing.T) {
	msg, err := Parse([]byte(sampleMessage))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var received []string
	for _, f := range msg.Fields {
		if strings.EqualFold(f.Name, "Received") {
			received = append(received, f.Value)
		}
	}

	if len(received) != 2 {
		t.Fatalf("expected 2 Received fields, got %d", len(received))
	}
	if received[0] != "from a.example.com" || received[1] != "from b.example.com" {
		t.Errorf("Received order not preserved: %v", received)
	}
}

func TestParseMalformed(t *testing.T) {
	// A header line without a colon is not a valid field.
	_, err := Parse([]byte("this is not a header\r\n\r\nbody\r\n"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("error = %v, want ErrMalformedMessage", err)
	}
}

func TestRoundTrip(t *testing.T) {
	msg, err := Parse([]byte(sampleMessage))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	again, err := Parse(msg.Bytes())
	if err != nil {
		t.Fatalf("reparsing serialized message: %v", err)
	}

	if len(again.Fields) != len(msg.Fields) {
		t.Fatalf("field count changed: %d -> %d", len(msg.Fields), len(again.Fields))
	}
	for i := range msg.Fields {
		if again.Fields[i] != msg.Fields[i] {
			t.Errorf("field %d changed: %+v -> %+v", i, msg.Fields[i], again.Fields[i])
		}
	}
	if !bytes.Equal(again.Body, msg.Body) {
		t.Errorf("body changed: %q -> %q", msg.Body, again.Body)
	}
}

func TestReadAll(t *testing.T) {
	data, err := ReadAll(strings.NewReader(sampleMessage), 4096)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(data) != sampleMessage {
		t.Error("ReadAll did not return the full stream")
	}
}

func TestReadAllTooLarge(t *testing.T) {
	_, err := ReadAll(strings.NewReader(sampleMessage), 10)
	if !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("error = %v, want ErrMessageTooLarge", err)
	}
}

func TestSender(t *testing.T) {
	tests := []struct {
		name string
		from string
		want string
	}{
		{"display name form", "Alice <alice@example.com>", "alice@example.com"},
		{"bare address", "alice@example.com", "alice@example.com"},
		{"mixed case lowered", "Alice <ALICE@Example.COM>", "alice@example.com"},
		{"unparseable", "not an address", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &Message{Fields: []Field{{Name: "From", Value: tt.from}}}
			if got := msg.Sender(); got != tt.want {
				t.Errorf("Sender() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSenderMissingFrom(t *testing.T) {
	msg := &Message{Fields: []Field{{Name: "Subject", Value: "hello"}}}
	if got := msg.Sender(); got != "" {
		t.Errorf("Sender() = %q, want empty", got)
	}
}

func TestReplaceFirstMatchOnly(t *testing.T) {
	msg, err := Parse([]byte(sampleMessage))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if !msg.Replace("received", "rewritten") {
		t.Fatal("Replace reported no match")
	}

	var received []string
	for _, f := range msg.Fields {
		if strings.EqualFold(f.Name, "Received") {
			received = append(received, f.Value)
		}
	}
	if received[0] != "rewritten" {
		t.Errorf("first Received = %q, want 'rewritten'", received[0])
	}
	if received[1] != "from b.example.com" {
		t.Errorf("second Received = %q, want untouched", received[1])
	}
}

func TestReplaceMissingHeader(t *testing.T) {
	msg := &Message{}
	if msg.Replace("Reply-To", "list@example.com") {
		t.Error("Replace reported a match on an empty header section")
	}
}

func TestGetCaseInsensitive(t *testing.T) {
	msg, err := Parse([]byte(sampleMessage))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	v, ok := msg.Get("subject")
	if !ok || v != "hello" {
		t.Errorf("Get(subject) = %q, %v", v, ok)
	}
}
