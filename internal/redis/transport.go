package redis

import (
	"io"
	"os"
	"sync"
	"time"
)

// Transport is the byte-stream capability the connection manager needs
// from a socket. *net.TCPConn satisfies it; QueueTransport provides a
// deterministic in-memory implementation for tests. The implementation
// is chosen at construction time.
type Transport interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

// QueueTransport is a Transport backed by an in-memory byte queue.
// Reads drain bytes previously supplied via Feed; writes are recorded
// and retrievable via Written. An empty queue reads as a timeout, like
// a socket with no data pending, until CloseFeed marks end of stream.
type QueueTransport struct {
	mu      sync.Mutex
	queue   []byte
	written []byte
	fedEOF  bool
	closed  bool
}

// NewQueueTransport returns an empty queue-backed transport.
func NewQueueTransport() *QueueTransport {
	return &QueueTransport{}
}

// Feed appends bytes to the read queue.
func (q *QueueTransport) Feed(p []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, p...)
}

// CloseFeed marks the read side as finished: once the queue drains,
// reads report EOF instead of a timeout.
func (q *QueueTransport) CloseFeed() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fedEOF = true
}

// Written returns everything written to the transport so far.
func (q *QueueTransport) Written() []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]byte(nil), q.written...)
}

func (q *QueueTransport) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, io.EOF
	}
	if len(q.queue) == 0 {
		if q.fedEOF {
			return 0, io.EOF
		}
		// No data pending behaves like an expired read deadline.
		return 0, os.ErrDeadlineExceeded
	}
	n := copy(p, q.queue)
	q.queue = q.queue[n:]
	return n, nil
}

func (q *QueueTransport) Write(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, io.ErrClosedPipe
	}
	q.written = append(q.written, p...)
	return len(p), nil
}

func (q *QueueTransport) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

func (q *QueueTransport) SetReadDeadline(time.Time) error { return nil }
