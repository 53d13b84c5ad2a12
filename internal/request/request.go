package request

import (
	"errors"
	"strings"
)

// MaxSize is the size of the buffer a connection is read into.
const MaxSize = 1024

var (
	// ErrEmpty is returned when the peer closed before sending any data.
	ErrEmpty = errors.New("empty request")

	// ErrMalformed is returned when the request line has no target.
	ErrMalformed = errors.New("malformed request line")

	// ErrIncomplete is returned when the request line was never terminated
	// and carries no target.
	ErrIncomplete = errors.New("incomplete request line")
)

// Request is the minimal form of an HTTP request seen by the proxy.
type Request struct {
	// Method is the first token of the request line. It is not validated.
	Method string

	// Target is the request target exactly as sent.
	Target string

	// URL is the target URL the proxy acts on.
	URL string

	// Header holds the header lines in order, without their CRLF.
	Header []string
}

// Parse parses buf, the bytes of one read from a client connection.
func Parse(buf []byte) (*Request, error) {
	if len(buf) == 0 {
		return nil, ErrEmpty
	}

	s := strings.ToValidUTF8(string(buf), "�")
	lines := strings.Split(s, "\r\n")

	fields := strings.Fields(lines[0])
	if len(fields) < 2 {
		if len(lines) == 1 {
			return nil, ErrIncomplete
		}
		return nil, ErrMalformed
	}

	var header []string
	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		header = append(header, line)
	}

	return &Request{
		Method: fields[0],
		Target: fields[1],
		URL:    TargetURL(fields[1]),
		Header: header,
	}, nil
}

// TargetURL converts a request target into the URL to fetch.
//
// Absolute http:// and https:// targets are returned verbatim. Anything else
// is treated as an origin-form path naming a bare URL, so a single leading
// slash is removed: "/https://example.com/" becomes "https://example.com/".
func TargetURL(target string) string {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return strings.TrimPrefix(target, "/")
}
