// Package prompt asks the operator which OpenCL platform and device to use.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/cwbudde/dispatchbench/internal/device"
)

// Chooser lists the options as comment lines on Out and reads an index from In when
// there is more than one. It implements device.Chooser.
type Chooser struct {
	in  *bufio.Reader
	out io.Writer

	// Interactive controls whether the prompt text is written before reading.
	Interactive bool
	// Platform and Device preselect an index. Negative values ask.
	Platform int
	Device   int
}

// New returns a chooser reading from in and listing to out. The prompt text is
// suppressed; set Interactive to show it.
func New(in io.Reader, out io.Writer) *Chooser {
	return &Chooser{
		in:       bufio.NewReader(in),
		out:      out,
		Platform: -1,
		Device:   -1,
	}
}

// IsTerminal reports whether r is a file attached to a terminal.
func IsTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var _ device.Chooser = (*Chooser)(nil)

// Choose implements device.Chooser. The returned index is not range checked.
func (c *Chooser) Choose(kind string, options []string) (int, error) {
	preset, title, question := c.Device, "Devices found", "Enter index of device to use: "
	if kind == device.KindPlatform {
		preset, title, question = c.Platform, "Platforms found", "Enter platform index to use: "
	}

	fmt.Fprintf(c.out, "# %s: %d\n", title, len(options))
	for i, opt := range options {
		fmt.Fprintf(c.out, "# (%d) %s\n", i, opt)
	}

	if preset >= 0 {
		return preset, nil
	}
	if len(options) <= 1 {
		return 0, nil
	}

	if c.Interactive {
		fmt.Fprintf(c.out, "# %s", question)
	}
	return c.readIndex()
}

// readIndex parses one line as an integer. Unparsable input and EOF select 0.
func (c *Chooser) readIndex() (int, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("read selection: %w", err)
	}
	n, perr := strconv.Atoi(strings.TrimSpace(line))
	if perr != nil {
		return 0, nil
	}
	return n, nil
}
