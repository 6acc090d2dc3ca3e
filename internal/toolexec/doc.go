// Package toolexec runs external scanner binaries (subfinder, katana,
// gospider, nuclei) with deadlines and process-group cleanup.
//
// Binaries are looked up in a per-user tool directory first (by default
// ~/go/bin, where `go install` puts them) and then on PATH.
package toolexec
