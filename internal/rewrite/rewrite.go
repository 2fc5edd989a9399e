// Package rewrite applies configured header transformations to a message.
package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/infodancer/listrelay/internal/config"
	"github.com/infodancer/listrelay/internal/message"
)

// ErrInvalidHeaderValue indicates a configured header value cannot be
// encoded as a legal header field.
var ErrInvalidHeaderValue = errors.New("invalid header value")

// Apply applies the rules to msg in order. Each rule replaces the value of
// the first header field matching its name (case-insensitive) or appends a
// new field when none exists. Applying the same rule twice is equivalent to
// applying it once.
func Apply(msg *message.Message, rules []config.HeaderRule) error {
	for _, rule := range rules {
		value := strings.TrimSpace(rule.Value)
		if err := checkValue(rule.Name, value); err != nil {
			return err
		}
		if !msg.Replace(rule.Name, value) {
			msg.Append(rule.Name, value)
		}
	}
	return nil
}

// Filter removes header fields whose names are not on the whitelist
// (case-insensitive). An empty whitelist keeps every field.
func Filter(msg *message.Message, whitelist []string) {
	if len(whitelist) == 0 {
		return
	}

	allowed := make(map[string]struct{}, len(whitelist))
	for _, name := range whitelist {
		allowed[strings.ToLower(name)] = struct{}{}
	}

	kept := msg.Fields[:0]
	for _, f := range msg.Fields {
		if _, ok := allowed[strings.ToLower(f.Name)]; ok {
			kept = append(kept, f)
		}
	}
	msg.Fields = kept
}

// checkValue rejects header names and values that would corrupt the header
// section when serialized.
func checkValue(name, value string) error {
	if name == "" {
		return fmt.Errorf("%w: empty header name", ErrInvalidHeaderValue)
	}
	for _, r := range name {
		if r <= ' ' || r == ':' || r > '~' {
			return fmt.Errorf("%w: header name %q contains illegal character", ErrInvalidHeaderValue, name)
		}
	}
	for _, r := range value {
		if r == '\r' || r == '\n' || r == 0 {
			return fmt.Errorf("%w: value for header %q contains line break or NUL", ErrInvalidHeaderValue, name)
		}
	}
	return nil
}
