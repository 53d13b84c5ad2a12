// Package auth checks the Basic credentials a client presents to the proxy.
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// HeaderPrefix is the literal start of a header line carrying credentials.
const HeaderPrefix = "Authorization: Basic "

// Authenticator validates header lines against one expected credential.
type Authenticator struct {
	expected []byte
}

// New returns an Authenticator accepting the credential expected, in
// "user:password" form. An empty expected credential accepts nobody.
func New(expected string) *Authenticator {
	return &Authenticator{expected: []byte(expected)}
}

// Authenticate reports whether any of the header lines carries the expected
// credential. Lines are tried in order and the first match wins.
func (a *Authenticator) Authenticate(lines []string) bool {
	if len(a.expected) == 0 {
		return false
	}
	for _, line := range lines {
		creds, ok := decode(line)
		if !ok {
			continue
		}
		if subtle.ConstantTimeCompare(creds, a.expected) == 1 {
			return true
		}
	}
	return false
}

// decode returns the decoded credential of an Authorization line.
func decode(line string) ([]byte, bool) {
	encoded, ok := strings.CutPrefix(line, HeaderPrefix)
	if !ok {
		return nil, false
	}
	c, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false
	}
	if !utf8.Valid(c) {
		return nil, false
	}
	return c, true
}

// HeaderLine returns the Authorization line that carries credentials.
func HeaderLine(credentials string) string {
	return HeaderPrefix + base64.StdEncoding.EncodeToString([]byte(credentials))
}
