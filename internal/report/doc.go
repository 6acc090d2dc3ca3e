// Package report builds security assessment reports from stored findings
// and renders them.
//
// Generate is pure: it computes severity counts, the risk score and the
// report identifier from a list of findings. Writers render a Report:
//   - SimpleWriter: plain text for terminal display
//   - JSONWriter: the JSON export document
//   - MarkdownWriter: GitHub-flavored Markdown with a severity pie chart
//   - HTMLWriter: a standalone HTML page
//   - PDFWriter: an A4 PDF document
//
// Writers implement the Writer interface and can be composed with
// MultiWriter.
package report
