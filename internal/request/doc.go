// Package request parses the single read a warden connection receives into
// the request target and header lines.
//
// Parsing is deliberately minimal: only the request line's target and the raw
// header lines are extracted. The input is one read of at most [MaxSize]
// bytes, so a request larger than that is parsed from its truncated prefix.
package request
