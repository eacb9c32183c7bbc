package redis

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Message is one pub/sub event pushed by the server. Channel has the
// configured namespace prefix already stripped; Payload is the published
// bytes, verbatim.
type Message struct {
	Channel string
	Payload string
}

// ErrIncomplete means the buffered bytes end mid-frame; poll again and
// retry with more input.
var ErrIncomplete = errors.New("incomplete redis frame")

// InvalidMessageError means the buffered bytes do not form a recognized
// pub/sub push.
type InvalidMessageError struct {
	Detail string
}

func (e *InvalidMessageError) Error() string {
	return "invalid redis push: " + e.Detail
}

// NextMessage frames the next complete push out of buf. It returns the
// parsed message and the number of bytes consumed; a nil message with
// consumed > 0 is a subscription confirmation, which carries no event.
// ErrIncomplete with consumed == 0 means buf ends mid-frame.
//
// Only the push shapes a subscriber connection can receive are
// recognized: three-element arrays whose first element is "message",
// "subscribe", or "unsubscribe".
func NextMessage(buf []byte, namespace string) (*Message, int, error) {
	p := parser{buf: buf}

	count, err := p.arrayHeader()
	if err != nil {
		return nil, 0, err
	}
	if count != 3 {
		return nil, 0, &InvalidMessageError{Detail: fmt.Sprintf("array of %d elements", count)}
	}

	kind, err := p.bulkString()
	if err != nil {
		return nil, 0, err
	}

	switch kind {
	case "message":
		channel, err := p.bulkString()
		if err != nil {
			return nil, 0, err
		}
		payload, err := p.bulkString()
		if err != nil {
			return nil, 0, err
		}
		if namespace != "" {
			channel = strings.TrimPrefix(channel, namespace+":")
		}
		return &Message{Channel: channel, Payload: payload}, p.pos, nil
	case "subscribe", "unsubscribe":
		if _, err := p.bulkString(); err != nil {
			return nil, 0, err
		}
		if err := p.integer(); err != nil {
			return nil, 0, err
		}
		return nil, p.pos, nil
	default:
		return nil, 0, &InvalidMessageError{Detail: "unexpected push kind " + strconv.Quote(kind)}
	}
}

// parser is a cursor over one RESP frame. Running out of bytes at any
// point yields ErrIncomplete so the caller can wait for more input.
type parser struct {
	buf []byte
	pos int
}

// line returns the bytes up to the next CRLF and advances past it.
func (p *parser) line() ([]byte, error) {
	rest := p.buf[p.pos:]
	i := bytes.Index(rest, []byte("\r\n"))
	if i < 0 {
		return nil, ErrIncomplete
	}
	p.pos += i + 2
	return rest[:i], nil
}

// prefixedInt reads a line of the form "<marker><decimal>".
func (p *parser) prefixedInt(marker byte) (int, error) {
	line, err := p.line()
	if err != nil {
		return 0, err
	}
	if len(line) == 0 || line[0] != marker {
		return 0, &InvalidMessageError{Detail: fmt.Sprintf("expected %q line, got %q", marker, line)}
	}
	n, err := strconv.Atoi(string(line[1:]))
	if err != nil {
		return 0, &InvalidMessageError{Detail: fmt.Sprintf("bad length in %q", line)}
	}
	return n, nil
}

func (p *parser) arrayHeader() (int, error) {
	return p.prefixedInt('*')
}

func (p *parser) bulkString() (string, error) {
	n, err := p.prefixedInt('$')
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", &InvalidMessageError{Detail: "null bulk string"}
	}
	if p.pos+n+2 > len(p.buf) {
		return "", ErrIncomplete
	}
	s := string(p.buf[p.pos : p.pos+n])
	if !bytes.Equal(p.buf[p.pos+n:p.pos+n+2], []byte("\r\n")) {
		return "", &InvalidMessageError{Detail: "bulk string not CRLF-terminated"}
	}
	p.pos += n + 2
	return s, nil
}

func (p *parser) integer() error {
	_, err := p.prefixedInt(':')
	return err
}
