// Package cipher provides field-level encryption for sensitive values at rest.
//
// Every persisted text field that may carry customer data (target names and
// scope, job logs, finding titles and bodies, evidence payloads) passes through
// a Cipher before it reaches the database. Only the storage layer holds a
// Cipher; the rest of the application handles plaintext.
//
// Ciphertext format:
//
//	base64url( nonce[12] || AES-256-GCM(plaintext) || tag[16] )
//
// The key is derived from the configured secret with PBKDF2-SHA256, so any
// string of reasonable length is accepted as a secret.
package cipher
