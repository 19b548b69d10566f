package cli

import (
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Progress shows a spinner while a long operation runs. The zero value and
// quiet progress indicators are no-ops.
type Progress struct {
	s *spinner.Spinner
}

// StartProgress starts a spinner on out with the given message unless quiet
// is set.
func StartProgress(out io.Writer, msg string, quiet bool) *Progress {
	if quiet {
		return &Progress{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = " " + msg
	s.Start()
	return &Progress{s: s}
}

// Succeed stops the spinner leaving msg in its place.
func (p *Progress) Succeed(msg string) {
	p.stop(FormatSuccess(msg))
}

// Fail stops the spinner leaving msg in red.
func (p *Progress) Fail(msg string) {
	p.stop(text.FgRed.Sprint(msg))
}

// Stop stops the spinner without a final message.
func (p *Progress) Stop() {
	p.stop("")
}

func (p *Progress) stop(final string) {
	if p == nil || p.s == nil {
		return
	}
	if final != "" {
		p.s.FinalMSG = final + "\n"
	}
	p.s.Stop()
	p.s = nil
}
