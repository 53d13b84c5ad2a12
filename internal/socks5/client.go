package socks5

import (
	"errors"
	"fmt"
	"net"

	txsocks5 "github.com/txthinking/socks5"
)

// Auth holds optional username/password credentials for the proxy.
type Auth struct {
	Username string
	Password string
}

// ErrAuthFailed is returned when the proxy rejects the credentials.
var ErrAuthFailed = errors.New("socks5: authentication failed")

// Connect negotiates with the proxy on conn and asks it to CONNECT to
// address. On success conn carries the tunneled stream.
func Connect(conn net.Conn, auth Auth, address string) error {
	if err := negotiate(conn, auth); err != nil {
		return err
	}
	return request(conn, address)
}

func negotiate(conn net.Conn, auth Auth) error {
	methods := []byte{txsocks5.MethodNone}
	if auth.Username != "" {
		methods = append(methods, txsocks5.MethodUsernamePassword)
	}

	if _, err := txsocks5.NewNegotiationRequest(methods).WriteTo(conn); err != nil {
		return fmt.Errorf("socks5: write negotiation: %w", err)
	}
	neg, err := txsocks5.NewNegotiationReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("socks5: read negotiation: %w", err)
	}

	switch neg.Method {
	case txsocks5.MethodNone:
		return nil
	case txsocks5.MethodUsernamePassword:
		if auth.Username == "" {
			return errors.New("socks5: proxy requires username/password")
		}
		if _, err := txsocks5.NewUserPassNegotiationRequest([]byte(auth.Username), []byte(auth.Password)).WriteTo(conn); err != nil {
			return fmt.Errorf("socks5: write userpass: %w", err)
		}
		rep, err := txsocks5.NewUserPassNegotiationReplyFrom(conn)
		if err != nil {
			return fmt.Errorf("socks5: read userpass: %w", err)
		}
		if rep.Status != txsocks5.UserPassStatusSuccess {
			return ErrAuthFailed
		}
		return nil
	default:
		return fmt.Errorf("socks5: unsupported method %#x", neg.Method)
	}
}

func request(conn net.Conn, address string) error {
	atyp, addr, port, err := txsocks5.ParseAddress(address)
	if err != nil {
		return fmt.Errorf("socks5: parse address: %w", err)
	}
	// ParseAddress prefixes domain names with their length byte; NewRequest
	// adds its own.
	if atyp == txsocks5.ATYPDomain {
		addr = addr[1:]
	}

	if _, err := txsocks5.NewRequest(txsocks5.CmdConnect, atyp, addr, port).WriteTo(conn); err != nil {
		return fmt.Errorf("socks5: write request: %w", err)
	}
	rep, err := txsocks5.NewReplyFrom(conn)
	if err != nil {
		return fmt.Errorf("socks5: read reply: %w", err)
	}
	if rep.Rep != txsocks5.RepSuccess {
		return fmt.Errorf("socks5: connect %s refused with code %#x", address, rep.Rep)
	}
	return nil
}
