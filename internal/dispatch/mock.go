package dispatch

import (
	"context"

	"github.com/infodancer/listrelay/internal/message"
	"github.com/infodancer/listrelay/internal/status"
)

// MockDispatcher is a mock implementation of the Dispatcher interface for
// testing.
type MockDispatcher struct {
	// Calls counts how many times Dispatch was invoked.
	Calls int
	// LastMessage stores the message passed to the last Dispatch call.
	LastMessage *message.Message
	// LastRecipients stores the recipients of the last Dispatch call.
	LastRecipients []string
	// Outcomes, if set, is returned from Dispatch. Otherwise every
	// recipient succeeds.
	Outcomes []status.RecipientOutcome
	// Err is returned from Dispatch when set.
	Err error
}

// Dispatch captures the message and recipients for inspection in tests.
func (m *MockDispatcher) Dispatch(ctx context.Context, msg *message.Message, recipients []string) ([]status.RecipientOutcome, error) {
	m.Calls++
	m.LastMessage = msg
	m.LastRecipients = recipients

	if m.Outcomes != nil || m.Err != nil {
		return m.Outcomes, m.Err
	}

	outcomes := make([]status.RecipientOutcome, 0, len(recipients))
	for _, rcpt := range recipients {
		outcomes = append(outcomes, status.RecipientOutcome{
			Address: rcpt,
			Result:  status.ResultSuccess,
		})
	}
	return outcomes, nil
}
