// Package authorize decides whether a sender may post to the list.
package authorize

import "strings"

// Decision is the result of an authorization check.
type Decision struct {
	Accepted bool
	Reason   string
}

// Check compares the sender address against the recipient set.
// When reject is false every sender is accepted. Otherwise the sender must
// match a recipient exactly (case-insensitive); an empty recipient set
// rejects everything.
func Check(sender string, recipients []string, reject bool) Decision {
	if !reject {
		return Decision{Accepted: true}
	}

	if sender == "" {
		return Decision{Reason: "no sender address"}
	}

	for _, r := range recipients {
		if strings.EqualFold(sender, r) {
			return Decision{Accepted: true}
		}
	}
	return Decision{Reason: "sender is not a list member"}
}
