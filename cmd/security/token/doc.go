// Package token generates random secrets.
//
// Numeric codes back pins created by reconciliation. Opaque tokens are handed
// to live-feed clients and only their argon2id hash is configured server-side.
// Every value comes from crypto/rand.
package token
