package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

func renderRecords(p *Printer, recs []record) error {
	return p.Print(recs, func(t *Table) {
		t.SetHeaders("id", "name")
		for _, r := range recs {
			t.AppendRow(r.ID, r.Name)
		}
	})
}

func TestPrinter_Table(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Format: OutputFormatTable}

	require.NoError(t, renderRecords(p, []record{{"1", "Ada"}, {"2", ""}}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ID", "NAME"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1", "Ada"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"2", "-"}, strings.Fields(lines[2]))
	for _, l := range lines {
		assert.Equal(t, strings.TrimRight(l, " "), l, "no trailing padding")
	}
}

func TestPrinter_NoHeaders(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Out: &buf, Format: OutputFormatTable, NoHeaders: true}

	require.NoError(t, renderRecords(p, []record{{"1", "Ada"}}))
	assert.NotContains(t, buf.String(), "NAME")
	assert.Contains(t, buf.String(), "Ada")

	buf.Reset()
	require.NoError(t, renderRecords(p, nil))
	assert.Empty(t, buf.String())
}

func TestPrinter_JSONAndYAML(t *testing.T) {
	recs := []record{{"1", "Ada"}}

	var buf bytes.Buffer
	require.NoError(t, renderRecords(&Printer{Out: &buf, Format: OutputFormatJSON}, recs))
	assert.JSONEq(t, `[{"id":"1","name":"Ada"}]`, buf.String())

	buf.Reset()
	require.NoError(t, renderRecords(&Printer{Out: &buf, Format: OutputFormatYAML}, recs))
	assert.Contains(t, buf.String(), `id: "1"`)
	assert.Contains(t, buf.String(), "name: Ada")
}

func TestValidateOutputFormat(t *testing.T) {
	for _, f := range []string{"table", "wide", "json", "yaml"} {
		assert.NoError(t, ValidateOutputFormat(f))
	}
	assert.Error(t, ValidateOutputFormat("xml"))
}

func TestCommandFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	var flags CommandFlags
	RegisterCommonFlags(cmd, &flags)
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"-o", "json", "--no-headers", "-q"}))

	assert.Equal(t, "json", flags.OutputFormat)
	assert.True(t, flags.NoHeaders)
	assert.True(t, flags.Quiet)

	p, err := flags.Printer(&bytes.Buffer{})
	require.NoError(t, err)
	assert.True(t, p.Structured())

	flags.OutputFormat = "csv"
	_, err = flags.Printer(&bytes.Buffer{})
	assert.Error(t, err)
}

func TestFormatHelpers(t *testing.T) {
	assert.Contains(t, FormatSuccess("done"), "✓ done")
	assert.Contains(t, FormatWarning("careful"), "⚠ careful")
	assert.Contains(t, FormatError(assert.AnError), assert.AnError.Error())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
}

func TestProgress_Quiet(t *testing.T) {
	var buf bytes.Buffer
	p := StartProgress(&buf, "working", true)
	p.Succeed("done")
	p.Fail("failed")
	p.Stop()
	assert.Empty(t, buf.String())
}
