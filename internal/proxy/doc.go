// Package proxy implements warden's listener side: the accept loop and the
// per-connection handler that authenticates a request, applies URL policy,
// and answers from the shared cache or the origin.
//
// Each accepted connection carries exactly one request. The handler reads it
// with a single bounded read, writes one response and closes the connection.
package proxy
