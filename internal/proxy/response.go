package proxy

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Bodies of the rejection responses.
const (
	UnauthorizedBody   = "Authentication required"
	ForbiddenBody      = "This URL is blocked"
	InsecureSchemeBody = "Only secure URLs (https) are allowed"
)

// writeOK writes a 200 carrying body.
func writeOK(w io.Writer, body string) error {
	return writeResponse(w, http.StatusOK, body,
		"Access-Control-Allow-Origin: *",
	)
}

// writeReject writes a plain text rejection.
func writeReject(w io.Writer, code int, body string) error {
	return writeResponse(w, code, body,
		"Content-Type: text/plain; charset=utf-8",
	)
}

// writeResponse hand-writes an HTTP/1.1 response on a raw connection. Every
// response closes the connection.
func writeResponse(w io.Writer, code int, body string, header ...string) error {
	var b strings.Builder
	b.Grow(128 + len(body))

	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", code, http.StatusText(code))
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	for _, h := range header {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	b.WriteString("Connection: close\r\n\r\n")
	b.WriteString(body)

	_, err := io.WriteString(w, b.String())
	return err
}
