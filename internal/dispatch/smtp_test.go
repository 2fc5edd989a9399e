package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	gosmtp "github.com/emersion/go-smtp"

	"github.com/infodancer/listrelay/internal/config"
	"github.com/infodancer/listrelay/internal/message"
	"github.com/infodancer/listrelay/internal/status"
)

// delivery records one completed transaction on the test server.
type delivery struct {
	from string
	to   []string
	data []byte
}

// testBackend implements the go-smtp Backend interface, recording
// transactions and rejecting configured recipients. When dropAfter is
// positive the connection is severed once that many transactions completed,
// simulating a relay that dies mid-session.
type testBackend struct {
	mu         sync.Mutex
	rejected   map[string]bool
	deliveries []delivery
	dropAfter  int
}

func (b *testBackend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	return &testSession{backend: b, conn: c}, nil
}

func (b *testBackend) record(d delivery) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = append(b.deliveries, d)
}

func (b *testBackend) recorded() []delivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]delivery(nil), b.deliveries...)
}

// testSession implements the go-smtp Session interface.
type testSession struct {
	backend *testBackend
	conn    *gosmtp.Conn
	from    string
	to      []string
}

func (s *testSession) Mail(from string, opts *gosmtp.MailOptions) error {
	s.backend.mu.Lock()
	drop := s.backend.dropAfter > 0 && len(s.backend.deliveries) >= s.backend.dropAfter
	s.backend.mu.Unlock()
	if drop {
		s.conn.Close()
		return nil
	}
	s.from = from
	return nil
}

func (s *testSession) Rcpt(to string, opts *gosmtp.RcptOptions) error {
	s.backend.mu.Lock()
	rejected := s.backend.rejected[to]
	s.backend.mu.Unlock()
	if rejected {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "no such user",
		}
	}
	s.to = append(s.to, to)
	return nil
}

func (s *testSession) Data(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.backend.record(delivery{from: s.from, to: s.to, data: data})
	return nil
}

func (s *testSession) Reset() {
	s.from = ""
	s.to = nil
}

func (s *testSession) Logout() error {
	return nil
}

// startServer runs a go-smtp server on a random local port and returns its
// transport configuration.
func startServer(t *testing.T, backend *testBackend) config.SMTPConfig {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}

	srv := gosmtp.NewServer(backend)
	srv.Domain = "relay.test"
	go srv.Serve(ln) //nolint:errcheck
	t.Cleanup(func() { srv.Close() })

	return smtpConfigFor(t, ln.Addr().String())
}

func smtpConfigFor(t *testing.T, addr string) config.SMTPConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("splitting address: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parsing port: %v", err)
	}
	return config.SMTPConfig{
		Host:     host,
		Port:     port,
		MailFrom: "list@example.com",
		Helo:     "client.test",
		Timeout:  "5s",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testMessage(t *testing.T) *message.Message {
	t.Helper()
	msg, err := message.Parse([]byte("From: alice@example.com\r\nSubject: hi\r\n\r\nhello\r\n"))
	if err != nil {
		t.Fatalf("parsing test message: %v", err)
	}
	return msg
}

func TestDispatchAllRecipients(t *testing.T) {
	backend := &testBackend{}
	cfg := startServer(t, backend)
	d := NewSMTP(cfg, testLogger())

	recipients := []string{"alice@example.com", "bob@example.com"}
	outcomes, err := d.Dispatch(context.Background(), testMessage(t), recipients)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if len(outcomes) != len(recipients) {
		t.Fatalf("expected %d outcomes, got %d", len(recipients), len(outcomes))
	}
	for i, o := range outcomes {
		if o.Address != recipients[i] {
			t.Errorf("outcome %d address = %q, want %q", i, o.Address, recipients[i])
		}
		if o.Result != status.ResultSuccess {
			t.Errorf("outcome %d result = %q, want success", i, o.Result)
		}
	}

	deliveries := backend.recorded()
	if len(deliveries) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(deliveries))
	}
	for i, dl := range deliveries {
		if dl.from != "list@example.com" {
			t.Errorf("transaction %d envelope from = %q", i, dl.from)
		}
		if len(dl.to) != 1 || dl.to[0] != recipients[i] {
			t.Errorf("transaction %d recipients = %v", i, dl.to)
		}
		if !strings.Contains(string(dl.data), "Subject: hi") {
			t.Errorf("transaction %d message lost headers: %q", i, dl.data)
		}
	}
}

func TestDispatchPartialRejection(t *testing.T) {
	backend := &testBackend{rejected: map[string]bool{"bob@example.com": true}}
	cfg := startServer(t, backend)
	d := NewSMTP(cfg, testLogger())

	recipients := []string{"alice@example.com", "bob@example.com", "carol@example.com"}
	outcomes, err := d.Dispatch(context.Background(), testMessage(t), recipients)
	if err != nil {
		t.Fatalf("one rejected recipient must not fail the dispatch: %v", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Result != status.ResultSuccess {
		t.Errorf("alice result = %q, want success", outcomes[0].Result)
	}
	if outcomes[1].Result != status.ResultError {
		t.Errorf("bob result = %q, want error", outcomes[1].Result)
	}
	if !strings.Contains(outcomes[1].Detail, "no such user") {
		t.Errorf("bob detail = %q, want relay message", outcomes[1].Detail)
	}
	if outcomes[2].Result != status.ResultSuccess {
		t.Errorf("carol result = %q, want success", outcomes[2].Result)
	}

	if got := len(backend.recorded()); got != 2 {
		t.Errorf("expected 2 completed transactions, got %d", got)
	}
}

func TestDispatchConnectionLostMidSession(t *testing.T) {
	backend := &testBackend{dropAfter: 1}
	cfg := startServer(t, backend)
	d := NewSMTP(cfg, testLogger())

	recipients := []string{"alice@example.com", "bob@example.com", "carol@example.com"}
	outcomes, err := d.Dispatch(context.Background(), testMessage(t), recipients)
	if !errors.Is(err, ErrTransportConnection) {
		t.Fatalf("error = %v, want ErrTransportConnection", err)
	}

	if len(outcomes) != 3 {
		t.Fatalf("expected outcomes for every recipient, got %d", len(outcomes))
	}
	if outcomes[0].Result != status.ResultSuccess {
		t.Errorf("alice result = %q, want success before the connection died", outcomes[0].Result)
	}
	if outcomes[1].Result != status.ResultError {
		t.Errorf("bob result = %q, want error for the in-flight send", outcomes[1].Result)
	}
	if outcomes[2].Result != status.ResultSkipped {
		t.Errorf("carol result = %q, want skipped", outcomes[2].Result)
	}

	seen := map[string]int{}
	for _, o := range outcomes {
		seen[o.Address]++
	}
	for _, r := range recipients {
		if seen[r] != 1 {
			t.Errorf("recipient %s appears %d times in outcomes, want exactly once", r, seen[r])
		}
	}

	if got := len(backend.recorded()); got != 1 {
		t.Errorf("expected 1 completed transaction, got %d", got)
	}
}

func TestDispatchConnectionRefused(t *testing.T) {
	// Grab a port and close it again so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listening: %v", err)
	}
	cfg := smtpConfigFor(t, ln.Addr().String())
	ln.Close()

	d := NewSMTP(cfg, testLogger())

	recipients := []string{"alice@example.com", "bob@example.com"}
	outcomes, err := d.Dispatch(context.Background(), testMessage(t), recipients)
	if !errors.Is(err, ErrTransportConnection) {
		t.Fatalf("error = %v, want ErrTransportConnection", err)
	}

	if len(outcomes) != 2 {
		t.Fatalf("expected outcomes for every recipient, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if o.Result != status.ResultSkipped {
			t.Errorf("%s result = %q, want skipped", o.Address, o.Result)
		}
	}
}

func TestDispatchNoRecipients(t *testing.T) {
	// No server: an empty recipient set must not even dial.
	cfg := config.SMTPConfig{Host: "127.0.0.1", Port: 1, MailFrom: "list@example.com", Helo: "client.test"}
	d := NewSMTP(cfg, testLogger())

	outcomes, err := d.Dispatch(context.Background(), testMessage(t), nil)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if len(outcomes) != 0 {
		t.Errorf("expected no outcomes, got %v", outcomes)
	}
}
