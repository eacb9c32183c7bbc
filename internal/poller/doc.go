// Package poller drives the Redis connection: it polls for new bytes on
// a timer, frames complete pub/sub messages out of the input buffer,
// and serializes subscription commands onto the connection.
//
// The poller is the connection's single owner. All subscription changes
// from the streaming server are funneled through its request channel so
// the connection is never touched from two goroutines.
package poller
