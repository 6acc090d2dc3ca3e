// Package main provides the entry point for the byteforge CLI.
//
// byteforge orchestrates security assessment jobs (subdomain recon,
// crawling, template vulnerability scans, active probing and reports)
// against registered targets and persists their findings.
//
// Usage:
//
//	byteforge target add --name acme --scope acme.example
//	byteforge job submit 1 composite
//	byteforge serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
