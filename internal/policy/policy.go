// Package policy decides which target URLs the proxy is willing to fetch.
package policy

import "strings"

// DefaultWords is the built-in denylist of abusive or illegal content
// categories.
var DefaultWords = []string{
	"adult",
	"gamble",
	"casino",
	"drugs",
	"porn",
	"violence",
	"phishing",
	"scam",
	"fake",
	"illegal",
	"fraud",
	"hacking",
	"pirate",
	"botnet",
	"terror",
	"extremist",
	"spam",
	"pharmacy",
	"clickbait",
	"hate",
	"virus",
}

// Verdict is the outcome of checking a URL.
type Verdict int

const (
	Allowed Verdict = iota
	Forbidden
	InsecureScheme
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case Forbidden:
		return "forbidden"
	case InsecureScheme:
		return "insecure_scheme"
	default:
		return "unknown"
	}
}

// Filter rejects URLs containing a denylisted word or not using https.
type Filter struct {
	words []string
}

// New returns a Filter for the given denylist. Empty words are ignored, since
// they would match every URL.
func New(words []string) *Filter {
	f := &Filter{words: make([]string, 0, len(words))}
	for _, w := range words {
		if w != "" {
			f.words = append(f.words, w)
		}
	}
	return f
}

// Check returns the verdict for url. The denylist is consulted before the
// scheme, so a forbidden plaintext URL is Forbidden rather than
// InsecureScheme.
func (f *Filter) Check(url string) Verdict {
	if _, ok := f.Match(url); ok {
		return Forbidden
	}
	if !strings.HasPrefix(url, "https://") {
		return InsecureScheme
	}
	return Allowed
}

// Match returns the first denylisted word found in url.
func (f *Filter) Match(url string) (string, bool) {
	for _, w := range f.words {
		if strings.Contains(url, w) {
			return w, true
		}
	}
	return "", false
}
