package redis

import (
	"bytes"
	"testing"
)

func TestEncodeAuth(t *testing.T) {
	got := encodeAuth("secret")
	want := []byte("*2\r\n$4\r\nauth\r\n$6\r\nsecret\r\n")
	if !bytes.Equal(got, want) {
		t.Errorf("encodeAuth() = %q, want %q", got, want)
	}
}

func TestEncodePing(t *testing.T) {
	if got := encodePing(); !bytes.Equal(got, []byte("PING\r\n")) {
		t.Errorf("encodePing() = %q, want PING\\r\\n", got)
	}
}

func TestEncodeSetName(t *testing.T) {
	got := encodeSetName()
	want := []byte("*3\r\n$6\r\nCLIENT\r\n$7\r\nSETNAME\r\n$8\r\nflodgatt\r\n")
	if !bytes.Equal(got, want) {
		t.Errorf("encodeSetName() = %q, want %q", got, want)
	}
}

func TestEncodeCmd(t *testing.T) {
	tests := []struct {
		name          string
		cmd           Cmd
		channels      []string
		wantPrimary   string
		wantSecondary string
	}{
		{
			name:          "subscribe one channel",
			cmd:           CmdSubscribe,
			channels:      []string{"timeline:public"},
			wantPrimary:   "*2\r\n$9\r\nsubscribe\r\n$15\r\ntimeline:public\r\n",
			wantSecondary: "*3\r\n$3\r\nSET\r\n$26\r\nsubscribed:timeline:public\r\n$1\r\n1\r\n",
		},
		{
			name:        "subscribe two channels",
			cmd:         CmdSubscribe,
			channels:    []string{"timeline:public", "timeline:4"},
			wantPrimary: "*3\r\n$9\r\nsubscribe\r\n$15\r\ntimeline:public\r\n$10\r\ntimeline:4\r\n",
			wantSecondary: "*3\r\n$3\r\nSET\r\n$26\r\nsubscribed:timeline:public\r\n$1\r\n1\r\n" +
				"*3\r\n$3\r\nSET\r\n$21\r\nsubscribed:timeline:4\r\n$1\r\n1\r\n",
		},
		{
			name:          "unsubscribe clears the bookkeeping key",
			cmd:           CmdUnsubscribe,
			channels:      []string{"timeline:public"},
			wantPrimary:   "*2\r\n$11\r\nunsubscribe\r\n$15\r\ntimeline:public\r\n",
			wantSecondary: "*3\r\n$3\r\nSET\r\n$26\r\nsubscribed:timeline:public\r\n$1\r\n0\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary, secondary := encodeCmd(tt.cmd, tt.channels)
			if string(primary) != tt.wantPrimary {
				t.Errorf("primary = %q, want %q", primary, tt.wantPrimary)
			}
			if string(secondary) != tt.wantSecondary {
				t.Errorf("secondary = %q, want %q", secondary, tt.wantSecondary)
			}
		})
	}
}

func TestClassifyReply(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  replyKind
	}{
		{"pong", "+PONG\r\n", replyOK},
		{"ok", "+OK\r\n", replyOK},
		{"ok with trailing bytes", "+OK\r\nextra", replyOK},
		{"noauth", "-NOAUTH Authentication required.\r\n", replyAuthRequired},
		{"http 1.0", "HTTP/1.0 200 OK\r\n", replyNotRedis},
		{"http 1.1", "HTTP/1.1 400 Bad Request\r\nServer: nginx\r\n", replyNotRedis},
		{"error", "-ERR unknown command\r\n", replyUnknown},
		{"empty", "", replyUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyReply([]byte(tt.reply)); got != tt.want {
				t.Errorf("classifyReply(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}
