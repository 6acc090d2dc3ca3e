// Package store provides SQLite-based persistence for byteforge.
//
// The database holds targets, jobs, findings, evidence and schedules.
// Target names and scopes, job logs, finding titles, descriptions and
// remediation, and evidence data are encrypted with the field cipher before
// they are written and decrypted when read. No other package sees
// ciphertext.
//
// A job execution writes through a Session: findings are staged in memory
// and committed together with the job's terminal status in a single
// transaction.
package store
