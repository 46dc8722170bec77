// Package store holds the persistence plumbing shared by the domain stores:
// PostgreSQL helpers and embedded goose migrations, plus MongoDB connection
// and error classification.
//
// Domain packages (pin, audit, guildconfig, notify) own their tables and
// collections; this package only owns the connection-level concerns.
package store
