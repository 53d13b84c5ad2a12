// Package socks5 implements the client side of a SOCKS5 CONNECT handshake on
// an already established connection.
//
// It is a thin layer over the protocol types in github.com/txthinking/socks5,
// which lets the dialer package tunnel through a SOCKS5 proxy while keeping
// control of how the TCP connection to the proxy is made.
package socks5
