package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

// OutputFormat represents the supported output formats for CLI commands.
type OutputFormat string

const (
	// OutputFormatTable formats output as a kubectl-style plain table
	OutputFormatTable OutputFormat = "table"
	// OutputFormatWide formats output as a table with additional columns
	OutputFormatWide OutputFormat = "wide"
	// OutputFormatJSON formats output as indented JSON
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML formats output as YAML
	OutputFormatYAML OutputFormat = "yaml"
)

// ValidateOutputFormat validates that the given format string is a supported output format.
func ValidateOutputFormat(format string) error {
	switch OutputFormat(format) {
	case OutputFormatTable, OutputFormatWide, OutputFormatJSON, OutputFormatYAML:
		return nil
	default:
		return fmt.Errorf("unsupported output format: %q (valid: table, wide, json, yaml)", format)
	}
}

// Printer renders command results in the format selected by the user.
type Printer struct {
	Out       io.Writer
	Format    OutputFormat
	NoHeaders bool
}

// Wide reports whether the wide table layout was requested.
func (p *Printer) Wide() bool {
	return p.Format == OutputFormatWide
}

// Structured reports whether the output is machine readable.
func (p *Printer) Structured() bool {
	return p.Format == OutputFormatJSON || p.Format == OutputFormatYAML
}

// Print writes data as JSON or YAML, or calls table for the table formats.
func (p *Printer) Print(data interface{}, table func(t *Table)) error {
	switch p.Format {
	case OutputFormatJSON:
		return WriteJSON(p.Out, data)
	case OutputFormatYAML:
		return WriteYAML(p.Out, data)
	default:
		t := NewTable(p.Out)
		t.SetNoHeaders(p.NoHeaders)
		table(t)
		t.Render()
		return nil
	}
}

// WriteJSON writes data as indented JSON followed by a newline.
func WriteJSON(w io.Writer, data interface{}) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format as JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// WriteYAML writes data as YAML.
func WriteYAML(w io.Writer, data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to format as YAML: %w", err)
	}
	_, err = w.Write(out)
	return err
}

// plainStyle renders tables without box-drawing characters so output can be
// piped to grep, awk and cut.
var plainStyle = table.Style{
	Name: "Plain",
	Box: table.BoxStyle{
		PaddingLeft:      "",
		PaddingRight:     "   ",
		MiddleHorizontal: " ",
		MiddleVertical:   "",
	},
	Format: table.FormatOptions{
		Header: text.FormatUpper,
		Row:    text.FormatDefault,
	},
	Options: table.Options{
		DrawBorder:      false,
		SeparateColumns: false,
		SeparateHeader:  false,
		SeparateRows:    false,
	},
}

// Table is a kubectl-style table backed by go-pretty.
type Table struct {
	w         table.Writer
	out       io.Writer
	headers   int
	rows      int
	noHeaders bool
}

// NewTable creates a table that renders to out.
func NewTable(out io.Writer) *Table {
	w := table.NewWriter()
	w.SetStyle(plainStyle)
	return &Table{w: w, out: out}
}

// SetHeaders sets the column headers. Headers are rendered upper case.
func (t *Table) SetHeaders(headers ...string) {
	row := make(table.Row, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	t.headers = len(headers)
	t.w.AppendHeader(row)
}

// SetNoHeaders controls whether to suppress the header row.
func (t *Table) SetNoHeaders(noHeaders bool) {
	t.noHeaders = noHeaders
}

// AppendRow adds a row. Empty cells are shown as "-".
func (t *Table) AppendRow(cells ...string) {
	row := make(table.Row, len(cells))
	for i, c := range cells {
		if c == "" {
			c = "-"
		}
		row[i] = c
	}
	t.rows++
	t.w.AppendRow(row)
}

// Render writes the table. Nothing is written for an empty headerless table.
func (t *Table) Render() {
	if t.rows == 0 && (t.noHeaders || t.headers == 0) {
		return
	}
	if t.noHeaders {
		t.w.ResetHeaders()
	}
	var lines []string
	for _, line := range strings.Split(t.w.Render(), "\n") {
		lines = append(lines, strings.TrimRight(line, " "))
	}
	fmt.Fprintln(t.out, strings.Join(lines, "\n"))
}

// FormatError formats an error message for CLI output
func FormatError(err error) string {
	return text.FgRed.Sprintf("Error: %v", err)
}

// FormatSuccess formats a success message for CLI output
func FormatSuccess(msg string) string {
	return text.FgGreen.Sprintf("✓ %s", msg)
}

// FormatWarning formats a warning message for CLI output
func FormatWarning(msg string) string {
	return text.FgYellow.Sprintf("⚠ %s", msg)
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max || max < 4 {
		return s
	}
	return string(r[:max-3]) + "..."
}
