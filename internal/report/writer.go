package report

import (
	"fmt"
	"io"
	"strings"
)

// Writer renders a Report to an output destination.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(report *Report) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously.
// This is useful for outputting to both terminal and file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *Report) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// Format selects a report renderer.
type Format string

const (
	// FormatText is the plain terminal format.
	FormatText Format = "text"
	// FormatHTML is a standalone HTML document.
	FormatHTML Format = "html"
	// FormatMarkdown is GitHub-flavored Markdown.
	FormatMarkdown Format = "markdown"
	// FormatJSON is the JSON export document.
	FormatJSON Format = "json"
	// FormatPDF is a PDF document.
	FormatPDF Format = "pdf"
)

// Formats lists every supported format.
var Formats = []Format{FormatText, FormatHTML, FormatMarkdown, FormatJSON, FormatPDF}

// ParseFormat converts a format name ("md" is accepted for markdown).
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "md" {
		return FormatMarkdown, nil
	}
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown report format %q", s)
}

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return "." + string(f)
	}
}

// NewWriter returns the Writer for format.
func NewWriter(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatText:
		return NewSimpleWriter(output), nil
	case FormatHTML:
		return NewHTMLWriter(output)
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatPDF:
		return NewPDFWriter(output), nil
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
}

// countingWriter counts bytes written through it.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
