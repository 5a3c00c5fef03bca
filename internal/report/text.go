// Package report writes benchmark results as whitespace-separated columns that
// plotting tools read directly. Lines starting with '#' are comments.
package report

import (
	"fmt"
	"io"

	"github.com/cwbudde/dispatchbench/internal/bench"
)

// Header is the column header written before the first row.
const Header = "# N         Time          GB/sec"

// Text writes one row per problem size to an io.Writer.
type Text struct {
	w io.Writer
}

// NewText returns a reporter writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w}
}

// Header writes the column header line.
func (t *Text) Header() error {
	_, err := fmt.Fprintln(t.w, Header)
	return err
}

// Row writes the size, the median seconds per call and the bandwidth.
func (t *Text) Row(r bench.TrialResult) error {
	_, err := fmt.Fprintf(t.w, "%d      %g      %g\n", r.N, r.Median, r.Bandwidth)
	return err
}

// Comment writes a '#'-prefixed line.
func (t *Text) Comment(format string, args ...any) error {
	_, err := fmt.Fprintf(t.w, "# "+format+"\n", args...)
	return err
}
