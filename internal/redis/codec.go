package redis

import (
	"bytes"
	"strconv"
)

// Cmd is a subscription command mirrored to both connections.
type Cmd int

const (
	CmdSubscribe Cmd = iota
	CmdUnsubscribe
)

func (c Cmd) String() string {
	if c == CmdSubscribe {
		return "subscribe"
	}
	return "unsubscribe"
}

// connName is the value sent with CLIENT SETNAME during the handshake.
const connName = "flodgatt"

// respArray encodes args in the RESP length-prefixed array format,
// e.g. ["SET", "k", "v"] -> "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n".
func respArray(args ...string) []byte {
	var b bytes.Buffer
	b.WriteByte('*')
	b.WriteString(strconv.Itoa(len(args)))
	b.WriteString("\r\n")
	for _, arg := range args {
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(len(arg)))
		b.WriteString("\r\n")
		b.WriteString(arg)
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

// encodeAuth encodes the AUTH command for the configured password.
func encodeAuth(password string) []byte {
	return respArray("auth", password)
}

// encodePing encodes the liveness check. Redis accepts the inline form.
func encodePing() []byte {
	return []byte("PING\r\n")
}

// encodeSetName encodes CLIENT SETNAME so the connection is identifiable
// in CLIENT LIST output.
func encodeSetName() []byte {
	return respArray("CLIENT", "SETNAME", connName)
}

// encodeCmd encodes a subscription command into the bytes for each
// connection: the pub/sub command over all channels for the primary, and
// one SET per channel for the secondary.
//
// The secondary SETs update "subscribed:<channel>" keys because the
// Mastodon web server stops publishing to a channel when it believes no
// one is subscribed (mastodon PR #3278). The value is 1 on subscribe and
// 0 on unsubscribe, so its view of the subscriber count stays non-zero
// exactly while real subscribers exist.
func encodeCmd(cmd Cmd, channels []string) (primary, secondary []byte) {
	args := make([]string, 0, len(channels)+1)
	args = append(args, cmd.String())
	args = append(args, channels...)
	primary = respArray(args...)

	flag := "1"
	if cmd == CmdUnsubscribe {
		flag = "0"
	}
	var b bytes.Buffer
	for _, ch := range channels {
		b.Write(respArray("SET", "subscribed:"+ch, flag))
	}
	return primary, b.Bytes()
}

// replyKind classifies a handshake reply by its leading bytes.
type replyKind int

const (
	replyOK replyKind = iota
	replyAuthRequired
	replyNotRedis
	replyUnknown
)

// classifyReply inspects only a leading byte window of a handshake reply.
// At handshake time only a small fixed set of reply shapes is possible,
// so no general protocol parse is needed.
func classifyReply(reply []byte) replyKind {
	switch {
	case bytes.HasPrefix(reply, []byte("+PONG\r\n")), bytes.HasPrefix(reply, []byte("+OK\r\n")):
		return replyOK
	case bytes.HasPrefix(reply, []byte("-NOAUTH")):
		return replyAuthRequired
	case bytes.HasPrefix(reply, []byte("HTTP/1.")):
		return replyNotRedis
	default:
		return replyUnknown
	}
}
