// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Bytes polled off the primary Redis connection
//   - Input buffer resize count
//   - Pub/sub messages parsed and fanned out
//   - Subscription commands sent, by kind
//   - Connected streaming clients
package metrics
