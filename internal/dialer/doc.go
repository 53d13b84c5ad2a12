// Package dialer provides the outbound connections warden uses to reach
// origin servers.
//
// Origins are dialed either directly or through an upstream proxy (HTTP
// CONNECT or SOCKS5). The origin fetcher's HTTP transport dials every
// connection through one of these, so TLS to the origin is always negotiated
// end to end, on top of whatever tunnel the dialer built.
package dialer
