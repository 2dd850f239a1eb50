// Package session implements the durable session store and the append-only
// device-conflict journal on Redis.
//
// A session's device fingerprint is fixed at creation and never rewritten;
// conflict handling belongs to the engine layered above. The journal is
// append-only: the application writes conflicts and reads them back, but
// never mutates or deletes entries (retention is an external concern).
package session
