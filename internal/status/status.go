// Package status defines the delivery status record that documents the
// outcome of one invocation.
package status

import "time"

// Result is the outcome of a send attempt to a single recipient.
type Result string

const (
	// ResultSuccess means the relay accepted the message for this recipient.
	ResultSuccess Result = "success"
	// ResultError means the relay rejected this recipient; Detail holds the
	// transport error.
	ResultError Result = "error"
	// ResultSkipped means no attempt was made for this recipient.
	ResultSkipped Result = "skipped"
)

// Disposition is the overall outcome of the invocation.
type Disposition string

const (
	// DispositionPending is recorded in the pre-send snapshot.
	DispositionPending Disposition = "pending"
	// DispositionSent means dispatch completed; individual recipients may
	// still have failed.
	DispositionSent Disposition = "sent"
	// DispositionRejected means the sender was not authorized to post.
	DispositionRejected Disposition = "rejected"
	// DispositionRateLimited means the sender posted too recently.
	DispositionRateLimited Disposition = "rate-limited"
	// DispositionMalformed means the input could not be parsed.
	DispositionMalformed Disposition = "malformed"
	// DispositionInvalidHeader means a configured header rule produced an
	// illegal header value.
	DispositionInvalidHeader Disposition = "invalid-header"
	// DispositionTransportFailure means the outbound relay was unreachable.
	DispositionTransportFailure Disposition = "transport-failure"
)

// RecipientOutcome records the result of one recipient's send attempt.
type RecipientOutcome struct {
	Address string `json:"address"`
	Result  Result `json:"result"`
	Detail  string `json:"detail,omitempty"`
}

// Record is the delivery status record. It is created once per invocation
// and appended to as the pipeline progresses, so a crash mid-send leaves a
// partial but truthful record.
type Record struct {
	Timestamp   time.Time          `json:"timestamp"`
	Sender      string             `json:"sender"`
	Accepted    bool               `json:"accepted"`
	Reason      string             `json:"reason,omitempty"`
	Disposition Disposition        `json:"disposition"`
	Recipients  []RecipientOutcome `json:"recipients,omitempty"`
}

// New creates a Record for the given sender with a pending disposition.
func New(sender string) *Record {
	return &Record{
		Timestamp:   time.Now().UTC(),
		Sender:      sender,
		Disposition: DispositionPending,
	}
}

// Reject marks the record as rejected with the given reason.
func (r *Record) Reject(disposition Disposition, reason string) {
	r.Accepted = false
	r.Disposition = disposition
	r.Reason = reason
}

// Accept marks the sender as authorized.
func (r *Record) Accept() {
	r.Accepted = true
}

// Succeeded returns the number of recipients that were sent successfully.
func (r *Record) Succeeded() int {
	n := 0
	for _, o := range r.Recipients {
		if o.Result == ResultSuccess {
			n++
		}
	}
	return n
}

// Failed returns the number of recipients whose send attempt failed.
func (r *Record) Failed() int {
	n := 0
	for _, o := range r.Recipients {
		if o.Result == ResultError {
			n++
		}
	}
	return n
}
