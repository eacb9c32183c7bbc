// Package hub fans parsed pub/sub messages out to connected streaming
// clients over WebSocket.
//
// The hub tracks which sessions watch which channel, subscribes a
// channel on its first watcher, and unsubscribes it when the last
// watcher disconnects.
package hub
