// Package remote is the HTTP transport to the authoritative liftsync server.
//
// Every call goes through Client.Do, which applies a per-request timeout
// (10s by default), an optional token-bucket rate limit, and bearer
// credentials. Failures are classified so callers can tell a timeout
// (ErrRequestTimeout) from other network failures (*NetworkError) and
// from a server answer outside 2xx (*StatusError).
package remote
