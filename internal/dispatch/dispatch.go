// Package dispatch relays a message to each list recipient through the
// configured outbound SMTP transport.
package dispatch

import (
	"context"
	"errors"

	"github.com/infodancer/listrelay/internal/message"
	"github.com/infodancer/listrelay/internal/status"
)

// ErrTransportConnection indicates the outbound relay could not be reached
// or the session could not be established. No recipient can be reached in
// that case, so the whole invocation fails.
var ErrTransportConnection = errors.New("transport connection failed")

// Dispatcher relays a message to a set of recipients.
//
// The returned outcomes cover every recipient exactly once, in recipient
// order. A non-nil error means the transport itself failed; per-recipient
// rejections are reported through the outcomes instead.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg *message.Message, recipients []string) ([]status.RecipientOutcome, error)
}
