// Package recon enumerates subdomains of a target with subfinder.
//
// When subfinder is not installed the scanner returns a fixed, clearly
// labelled simulated set so that demo and CI environments still exercise the
// full pipeline. Every discovered subdomain becomes an informational match.
package recon
