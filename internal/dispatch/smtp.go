package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/infodancer/listrelay/internal/config"
	"github.com/infodancer/listrelay/internal/message"
	"github.com/infodancer/listrelay/internal/status"
)

// SMTPDispatcher relays messages through an SMTP submission endpoint.
// Each recipient gets its own MAIL/RCPT/DATA transaction on a single
// connection, so one recipient's rejection cannot affect the others.
type SMTPDispatcher struct {
	cfg    config.SMTPConfig
	logger *slog.Logger
}

// NewSMTP creates an SMTPDispatcher for the given transport configuration.
func NewSMTP(cfg config.SMTPConfig, logger *slog.Logger) *SMTPDispatcher {
	return &SMTPDispatcher{cfg: cfg, logger: logger}
}

// Dispatch connects to the relay and attempts one send per recipient.
// Dial, EHLO, and AUTH failures return ErrTransportConnection (wrapped).
// SMTP-level recipient rejections are recorded and the loop continues; a
// network-level error mid-session marks the remaining recipients skipped
// and fails the invocation.
func (d *SMTPDispatcher) Dispatch(ctx context.Context, msg *message.Message, recipients []string) ([]status.RecipientOutcome, error) {
	outcomes := make([]status.RecipientOutcome, 0, len(recipients))
	if len(recipients) == 0 {
		return outcomes, nil
	}

	raw := msg.Bytes()

	c, err := d.connect(ctx)
	if err != nil {
		return d.skipAll(recipients), fmt.Errorf("%w: %v", ErrTransportConnection, err)
	}
	defer func() {
		if err := c.Quit(); err != nil {
			c.Close()
		}
	}()

	for i, rcpt := range recipients {
		err := d.sendOne(c, rcpt, raw)
		if err == nil {
			d.logger.Info("sent", slog.String("recipient", rcpt))
			outcomes = append(outcomes, status.RecipientOutcome{
				Address: rcpt,
				Result:  status.ResultSuccess,
			})
			continue
		}

		var smtpErr *smtp.SMTPError
		if errors.As(err, &smtpErr) {
			d.logger.Warn("recipient rejected by relay",
				slog.String("recipient", rcpt),
				slog.Int("code", smtpErr.Code),
				slog.String("detail", smtpErr.Message),
			)
			outcomes = append(outcomes, status.RecipientOutcome{
				Address: rcpt,
				Result:  status.ResultError,
				Detail:  smtpErr.Error(),
			})
			// Clear the aborted transaction before the next recipient.
			if resetErr := c.Reset(); resetErr != nil {
				outcomes = append(outcomes, d.skipAll(recipients[i+1:])...)
				return outcomes, fmt.Errorf("%w: %v", ErrTransportConnection, resetErr)
			}
			continue
		}

		// Not an SMTP status: the connection is gone.
		outcomes = append(outcomes, status.RecipientOutcome{
			Address: rcpt,
			Result:  status.ResultError,
			Detail:  err.Error(),
		})
		outcomes = append(outcomes, d.skipAll(recipients[i+1:])...)
		return outcomes, fmt.Errorf("%w: %v", ErrTransportConnection, err)
	}

	return outcomes, nil
}

// connect dials the relay, sends EHLO, and authenticates when credentials
// are configured.
func (d *SMTPDispatcher) connect(ctx context.Context) (*smtp.Client, error) {
	timeout := d.cfg.TimeoutDuration()

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", d.cfg.Addr())
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", d.cfg.Addr(), err)
	}

	c := smtp.NewClient(conn)
	c.CommandTimeout = timeout
	c.SubmissionTimeout = timeout

	if err := c.Hello(d.cfg.Helo); err != nil {
		c.Close()
		return nil, fmt.Errorf("EHLO: %w", err)
	}

	if d.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", d.cfg.Username, d.cfg.Password)); err != nil {
			c.Close()
			return nil, fmt.Errorf("AUTH: %w", err)
		}
	}

	return c, nil
}

// sendOne runs a full MAIL/RCPT/DATA transaction for a single recipient.
func (d *SMTPDispatcher) sendOne(c *smtp.Client, rcpt string, raw []byte) error {
	if err := c.Mail(d.cfg.MailFrom, nil); err != nil {
		return fmt.Errorf("MAIL FROM: %w", err)
	}
	if err := c.Rcpt(rcpt, nil); err != nil {
		return fmt.Errorf("RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing DATA: %w", err)
	}
	return nil
}

func (d *SMTPDispatcher) skipAll(recipients []string) []status.RecipientOutcome {
	outcomes := make([]status.RecipientOutcome, 0, len(recipients))
	for _, rcpt := range recipients {
		outcomes = append(outcomes, status.RecipientOutcome{
			Address: rcpt,
			Result:  status.ResultSkipped,
		})
	}
	return outcomes
}
