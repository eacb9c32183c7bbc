// Package redis implements the hand-rolled Redis pub/sub client.
//
// The client:
//   - Owns two TCP connections to the same Redis server: a primary
//     carrying subscription traffic and pushed messages, and a secondary
//     used only for the subscriber-count bookkeeping commands
//   - Performs the AUTH / PING / CLIENT SETNAME handshake on each
//     connection without a protocol library
//   - Exposes a non-blocking Poll over a growable input buffer and a
//     synchronous Send for subscribe/unsubscribe commands
//   - Frames the accumulated bytes into discrete pub/sub messages
package redis
