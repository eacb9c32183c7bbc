// Package database provides the connection pool and queries against the
// Mastodon PostgreSQL database.
//
// flodgatt reads only: access tokens (to authenticate streaming
// clients) and hashtags (to resolve tag names and ids for channel-name
// rendering). It never writes.
package database
