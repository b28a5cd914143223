// Copyright 2026 The flowbridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// RedactedPlaceholder replaces secret material in logs and payloads.
const RedactedPlaceholder = "[REDACTED]"

// bodySecretKeys are JSON fields scrubbed from any request body that gets
// logged, independent of the configured secret values.
var bodySecretKeys = []string{"api_key", "apiKey", "anthropic_api_key", "token", "authorization"}

// Redactor removes known secret values from free-form text before the text
// reaches a log line or a response body. Child processes may echo their
// environment into stdout or stderr, so every surfaced stream goes through
// this filter.
type Redactor struct {
	secrets []string
}

// NewRedactor builds a Redactor for the given secret values. Empty and
// very short values are ignored, so an unset credential costs nothing.
func NewRedactor(secrets ...string) *Redactor {
	r := &Redactor{}
	for _, s := range secrets {
		if len(strings.TrimSpace(s)) >= 6 {
			r.secrets = append(r.secrets, s)
		}
	}
	return r
}

// Redact replaces every occurrence of every known secret in s.
func (r *Redactor) Redact(s string) string {
	if r == nil || len(r.secrets) == 0 || s == "" {
		return s
	}
	for _, secret := range r.secrets {
		s = strings.ReplaceAll(s, secret, RedactedPlaceholder)
	}
	return s
}

// RedactBody scrubs a JSON request body for logging: known credential
// fields are overwritten and configured secret values removed. The input
// is returned unchanged when it is not valid JSON.
func (r *Redactor) RedactBody(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return []byte(r.Redact(string(body)))
	}
	out := body
	for _, key := range bodySecretKeys {
		if gjson.GetBytes(out, key).Exists() {
			if updated, err := sjson.SetBytes(out, key, RedactedPlaceholder); err == nil {
				out = updated
			}
		}
	}
	return []byte(r.Redact(string(out)))
}
