// Package pin implements the pin lifecycle: issuing access codes bound to a
// user and a role tier, changing their tier or expiration, deleting them,
// searching them, and the periodic maintenance passes (archive, letter
// flagging, backfill).
//
// Persistence is behind the Store interface with memory, PostgreSQL and
// MongoDB implementations. Every mutation is followed by an audit record;
// audit failures are reported to diagnostics only.
package pin
