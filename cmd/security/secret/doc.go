// Package secret hashes and verifies shared secrets with Argon2id.
//
// Hashes use the PHC-like form $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt>$<key>.
// Encoded hashes are untrusted input: Verify rejects malformed strings and
// parameters far above the configured cost.
package secret
