package redis

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/baajur/flodgatt/internal/metrics"
)

const (
	// block is the window size for a single poll read. The input buffer
	// must always have at least one block of headroom so a pushed
	// message is never truncated at the buffer boundary.
	block = 8192

	// tagCacheSize bounds the tag id -> name cache.
	tagCacheSize = 1000

	// pollReadTimeout is how long a poll read may wait for data before
	// reporting not-ready.
	pollReadTimeout = 10 * time.Millisecond

	dialTimeout      = 5 * time.Second
	handshakeTimeout = 5 * time.Second
)

// Channel is a subscription target. It renders its canonical wire-format
// channel name, given the resolved tag name when it has one, and exposes
// the tag id used for that resolution.
type Channel interface {
	// WireName returns the canonical channel string. tagName is the
	// friendly name resolved from the tag cache, or "" on a cache miss;
	// the fallback behavior on "" is the channel's own rendering rule.
	WireName(tagName string) (string, error)

	// TagID returns the integer tag identifier, if the channel has one.
	TagID() (int64, bool)
}

// Config holds the parameters for dialing a connection pair.
type Config struct {
	Host      string
	Port      int
	Password  string // "" means the server requires no AUTH
	Namespace string // "" means no channel-name prefix
}

// PollStatus is the outcome of a single Poll call.
type PollStatus int

const (
	// PollNotReady means no data was available; retry later.
	PollNotReady PollStatus = iota
	// PollNewBytes means new bytes were appended to the input buffer.
	PollNewBytes
	// PollClosed means the stream has ended; discard the Conn.
	PollClosed
)

// Conn is the connection manager: a pair of handshaken connections to
// one Redis server plus the input buffer and tag name cache.
//
// The primary connection carries subscribe/unsubscribe traffic and the
// pushed messages; the secondary only carries the subscriber-count
// bookkeeping commands (see encodeCmd).
//
// A Conn is owned by exactly one driving goroutine and is not safe for
// concurrent use.
type Conn struct {
	primary   Transport
	secondary Transport
	namespace string
	tagNames  *lru.Cache[int64, string]
	input     []byte
	logger    *slog.Logger
}

// Dial opens and handshakes both connections to cfg's address. Any
// failure closes whatever was opened and returns it; no
// partially-initialized Conn is ever returned.
func Dial(cfg Config, logger *slog.Logger) (*Conn, error) {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	primary, err := dialAndHandshake(addr, cfg.Password)
	if err != nil {
		return nil, err
	}
	secondary, err := dialAndHandshake(addr, cfg.Password)
	if err != nil {
		primary.Close()
		return nil, err
	}

	conn, err := New(primary, secondary, cfg, logger)
	if err != nil {
		primary.Close()
		secondary.Close()
		return nil, err
	}
	return conn, nil
}

// New assembles a Conn over already-established transports. Dial is the
// normal entry point; New exists so tests can substitute QueueTransports
// for real sockets.
func New(primary, secondary Transport, cfg Config, logger *slog.Logger) (*Conn, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tagNames, err := lru.New[int64, string](tagCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create tag name cache: %w", err)
	}
	return &Conn{
		primary:   primary,
		secondary: secondary,
		namespace: cfg.Namespace,
		tagNames:  tagNames,
		input:     make([]byte, 2*block),
		logger:    logger,
	}, nil
}

// Close closes both connections.
func (c *Conn) Close() error {
	perr := c.primary.Close()
	serr := c.secondary.Close()
	if perr != nil {
		return perr
	}
	return serr
}

// Namespace returns the configured channel-name prefix, "" if none.
func (c *Conn) Namespace() string { return c.namespace }

// Buf returns the input buffer. Poll may replace the backing array when
// the buffer grows, so callers must re-fetch after every Poll.
func (c *Conn) Buf() []byte { return c.input }

// Discard drops the first n buffered bytes, shifting the remainder to
// the front. The caller owns the cursor into the buffer and compacts
// once it has consumed complete messages.
func (c *Conn) Discard(n int) {
	copy(c.input, c.input[n:])
}

// CacheTagName records a tag id -> name mapping for later channel-name
// resolution. The cache is bounded; the least-recently-used entry is
// evicted at capacity.
func (c *Conn) CacheTagName(id int64, name string) {
	c.tagNames.Add(id, name)
}

// Poll performs one non-blocking read attempt, appending any newly
// available bytes to the input buffer at offset. It never retries and
// returns within the poll read timeout regardless of outcome.
//
// Every read failure other than an expired deadline is normalized to
// PollClosed: the caller's recovery is identical either way (tear down
// and reconnect), so it gets a single clean signal.
func (c *Conn) Poll(offset int) (int, PollStatus) {
	if len(c.input)-offset < block {
		c.input = append(c.input, make([]byte, len(c.input))...)
		c.logger.Info("resizing redis input buffer", "kib", len(c.input)/1024)
		metrics.BufferResizes.Inc()
	}

	c.primary.SetReadDeadline(time.Now().Add(pollReadTimeout))
	n, err := c.primary.Read(c.input[offset : offset+block])
	switch {
	case err == nil && n > 0:
		metrics.BytesPolled.Add(float64(n))
		return n, PollNewBytes
	case err == nil || errors.Is(err, io.EOF):
		return 0, PollClosed
	case isTimeout(err):
		return 0, PollNotReady
	default:
		c.logger.Error("redis read failed", "error", err)
		return 0, PollClosed
	}
}

// Send resolves each channel to its wire name, encodes the command, and
// writes the pub/sub form to the primary connection and the bookkeeping
// form to the secondary. Any write failure aborts the call; the caller
// must treat it as fatal to the connection pair.
func (c *Conn) Send(cmd Cmd, channels []Channel) error {
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		var tagName string
		if id, ok := ch.TagID(); ok {
			if cached, ok := c.tagNames.Get(id); ok {
				tagName = cached
			}
		}
		name, err := ch.WireName(tagName)
		if err != nil {
			return err
		}
		if c.namespace != "" {
			name = c.namespace + ":" + name
		}
		names = append(names, name)
	}

	primary, secondary := encodeCmd(cmd, names)
	if _, err := c.primary.Write(primary); err != nil {
		return fmt.Errorf("write %s command: %w", cmd, err)
	}
	if _, err := c.secondary.Write(secondary); err != nil {
		return fmt.Errorf("write subscriber-count update: %w", err)
	}
	metrics.CommandsSent.WithLabelValues(cmd.String()).Inc()
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// dialAndHandshake opens one TCP connection and runs the three-step
// handshake: optional AUTH, PING, CLIENT SETNAME.
func dialAndHandshake(addr, password string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	if err := handshake(conn, addr, password); err != nil {
		conn.Close()
		return nil, err
	}
	// Handshake reads used deadlines; steady state re-arms per read.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		conn.Close()
		return nil, &ConnectError{Addr: addr, Err: err}
	}
	return conn, nil
}

func handshake(conn net.Conn, addr, password string) error {
	if password != "" {
		if err := authenticate(conn, addr, password); err != nil {
			return err
		}
	}
	if err := validate(conn, addr); err != nil {
		return err
	}
	return setName(conn, addr)
}

// authenticate sends AUTH and requires the exact +OK\r\n reply.
func authenticate(conn net.Conn, addr, password string) error {
	if _, err := conn.Write(encodeAuth(password)); err != nil {
		return &ConnectError{Addr: addr, Err: err}
	}
	reply := make([]byte, 5)
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if _, err := io.ReadFull(conn, reply); err != nil {
		return &ConnectError{Addr: addr, Err: err}
	}
	if !bytes.Equal(reply, []byte("+OK\r\n")) {
		return &IncorrectPasswordError{Password: password}
	}
	return nil
}

// validate sends PING and classifies the reply to distinguish a healthy
// Redis server from one that wants AUTH, or from a non-Redis endpoint.
func validate(conn net.Conn, addr string) error {
	reply, err := roundTrip(conn, encodePing())
	if err != nil {
		return &ConnectError{Addr: addr, Err: err}
	}
	switch classifyReply(reply) {
	case replyOK:
		return nil
	case replyAuthRequired:
		return ErrMissingPassword
	case replyNotRedis:
		return &NotRedisError{Addr: addr}
	default:
		return &InvalidReplyError{Reply: string(reply)}
	}
}

// setName sends CLIENT SETNAME and requires a leading +OK\r\n.
func setName(conn net.Conn, addr string) error {
	reply, err := roundTrip(conn, encodeSetName())
	if err != nil {
		return &ConnectError{Addr: addr, Err: err}
	}
	if !bytes.HasPrefix(reply, []byte("+OK\r\n")) {
		return &InvalidReplyError{Reply: string(reply)}
	}
	return nil
}

// roundTrip writes one handshake command and reads up to 100 bytes of
// reply. Handshake replies are short; one read is always enough.
func roundTrip(conn net.Conn, cmd []byte) ([]byte, error) {
	if _, err := conn.Write(cmd); err != nil {
		return nil, err
	}
	reply := make([]byte, 100)
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	n, err := conn.Read(reply)
	if err != nil {
		return nil, err
	}
	return reply[:n], nil
}
