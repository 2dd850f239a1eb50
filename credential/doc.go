// Package credential implements the durable keyed store for one-time
// credentials (OTP codes and magic-link tokens) on Redis.
//
// The one invariant that matters here is single use: Consume and ConsumeAny
// are atomic with respect to concurrent calls on the same key, so two
// verification attempts racing on the same credential yield exactly one
// success. Expiry is written both as a Redis TTL and inside the record, and
// records found past their expiry are deleted lazily at read time.
package credential
