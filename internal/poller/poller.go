package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/baajur/flodgatt/internal/metrics"
	"github.com/baajur/flodgatt/internal/redis"
)

// Conn is what the poller needs from the Redis connection manager.
// *redis.Conn is the production implementation.
type Conn interface {
	Poll(offset int) (int, redis.PollStatus)
	Buf() []byte
	Discard(n int)
	Namespace() string
	Send(cmd redis.Cmd, channels []redis.Channel) error
	CacheTagName(id int64, name string)
}

// EventHandler receives framed pub/sub messages.
type EventHandler interface {
	Publish(msg redis.Message)
}

// Poller owns the Redis connection and runs its poll loop.
type Poller struct {
	conn     Conn
	handler  EventHandler
	interval time.Duration
	logger   *slog.Logger

	requests chan request

	// end is the number of valid bytes in the connection's input
	// buffer; bytes before it are unparsed arrivals.
	end int
}

type request struct {
	cmd     redis.Cmd
	channel redis.Channel
	tagName string
}

// New creates a Poller. interval is how often to poll for new bytes.
func New(conn Conn, handler EventHandler, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		conn:     conn,
		handler:  handler,
		interval: interval,
		logger:   logger,
		requests: make(chan request, 16),
	}
}

// Subscribe asks the poll loop to subscribe the channel. tagName, when
// non-empty, is cached against the channel's tag id so later renders
// need no database round trip.
func (p *Poller) Subscribe(ch redis.Channel, tagName string) {
	p.requests <- request{cmd: redis.CmdSubscribe, channel: ch, tagName: tagName}
}

// Unsubscribe asks the poll loop to unsubscribe the channel.
func (p *Poller) Unsubscribe(ch redis.Channel) {
	p.requests <- request{cmd: redis.CmdUnsubscribe, channel: ch}
}

// Run polls until ctx is canceled or the connection fails. A closed
// connection or a failed subscription write ends the loop with an
// error; recovery (reconnecting with a fresh Conn) is the caller's
// responsibility.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("redis poller started", "interval", p.interval)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("redis poller stopped")
			return nil
		case req := <-p.requests:
			if err := p.apply(req); err != nil {
				return err
			}
		case <-ticker.C:
			if err := p.drain(); err != nil {
				return err
			}
		}
	}
}

func (p *Poller) apply(req request) error {
	if req.tagName != "" {
		if id, ok := req.channel.TagID(); ok {
			p.conn.CacheTagName(id, req.tagName)
		}
	}
	if err := p.conn.Send(req.cmd, []redis.Channel{req.channel}); err != nil {
		return fmt.Errorf("send %s: %w", req.cmd, err)
	}
	return nil
}

// drain polls until no more bytes are immediately available, then
// frames and publishes every complete message in the buffer.
func (p *Poller) drain() error {
	for {
		n, status := p.conn.Poll(p.end)
		switch status {
		case redis.PollNewBytes:
			p.end += n
		case redis.PollNotReady:
			return p.parseBuffered()
		case redis.PollClosed:
			// Flush whatever arrived before the close.
			if err := p.parseBuffered(); err != nil {
				return err
			}
			return redis.ErrClosed
		}
	}
}

func (p *Poller) parseBuffered() error {
	pos := 0
	buf := p.conn.Buf()
	for pos < p.end {
		msg, consumed, err := redis.NextMessage(buf[pos:p.end], p.conn.Namespace())
		if errors.Is(err, redis.ErrIncomplete) {
			break
		}
		if err != nil {
			return fmt.Errorf("parse redis stream: %w", err)
		}
		pos += consumed
		if msg != nil {
			metrics.MessagesParsed.Inc()
			p.handler.Publish(*msg)
		}
	}
	if pos > 0 {
		p.conn.Discard(pos)
		p.end -= pos
	}
	return nil
}
