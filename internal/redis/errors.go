package redis

import (
	"errors"
	"fmt"
)

// Errors
var (
	// ErrMissingPassword means the server demands AUTH but no password
	// is configured.
	ErrMissingPassword = errors.New("redis requires a password but none is configured")

	// ErrClosed is reported once the primary connection has closed; the
	// manager must be discarded and rebuilt by the caller.
	ErrClosed = errors.New("redis connection closed")
)

// ConnectError reports a failure to open a TCP connection to the server.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to redis at %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// IncorrectPasswordError means the server explicitly rejected AUTH.
// The attempted password is carried for callers that need it but is
// redacted from the message.
type IncorrectPasswordError struct {
	Password string
}

func (e *IncorrectPasswordError) Error() string {
	return "redis rejected the configured password"
}

// NotRedisError means the endpoint replied in a shape inconsistent with
// the Redis protocol (e.g. an HTTP status line), signaling probable
// misconfiguration such as pointing at a web server port.
type NotRedisError struct {
	Addr string
}

func (e *NotRedisError) Error() string {
	return fmt.Sprintf("endpoint at %s did not speak the redis protocol", e.Addr)
}

// InvalidReplyError means the server replied during the handshake with
// content that matches no expected token.
type InvalidReplyError struct {
	Reply string
}

func (e *InvalidReplyError) Error() string {
	return fmt.Sprintf("unexpected redis reply: %q", e.Reply)
}
