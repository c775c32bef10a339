// Package errors provides the typed errors surfaced to operators for
// configuration and startup failures. Request-time failures never use
// these; they fold into the response status taxonomy instead.
package errors

import (
	"fmt"
	"strings"
)

// ConfigError reports a configuration problem with enough context to
// fix it.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field %q", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message
	if e.Suggestion != "" {
		msg += "\n  try: " + e.Suggestion
	}
	return msg
}

// StartupError reports a failure while building the service, naming the
// component that could not come up.
type StartupError struct {
	Component  string
	Message    string
	Suggestion string
	Err        error
}

func (e StartupError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%s: %s", e.Component, e.Message))
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if e.Suggestion != "" {
		parts = append(parts, "try: "+e.Suggestion)
	}
	return strings.Join(parts, ": ")
}

func (e StartupError) Unwrap() error {
	return e.Err
}
