// Package vulnscan matches nuclei vulnerability templates against a target.
//
// Output is read from nuclei's JSONL export. Every field of a result line
// is optional and lines that do not decode are skipped. Without nuclei
// installed the scanner reports a random subset of a fixed catalog,
// labelled "nuclei (simulated)".
package vulnscan
