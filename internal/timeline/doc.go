// Package timeline models the streams a client can subscribe to and
// their canonical Redis channel names.
package timeline
