package generator

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// DiffOptions configures how diffs are generated and displayed.
// All fields are optional with sensible defaults.
type DiffOptions struct {
	// ContextLines is the number of unchanged lines to show around changes.
	// Default: 3
	ContextLines int

	// Color styles the output for a terminal.
	Color bool

	// MaxLines refuses to diff larger inputs. Default: 10000
	MaxLines int
}

type editKind int

const (
	editEqual editKind = iota
	editInsert
	editDelete
)

// edit is one line of the edit script. oldPos and newPos are the 0-based
// positions in each file before the line is applied.
type edit struct {
	kind   editKind
	text   string
	oldPos int
	newPos int
}

// Lipgloss styles for terminal output
var (
	diffHeaderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	diffHunkStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("cyan")).Bold(true)
	diffAddedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("22"))
	diffRemovedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("52"))
)

// Diff returns a unified diff between old and newer, or "" when they are
// equal. Binary content and very large files produce a one-line summary.
func Diff(oldPath, newPath string, old, newer []byte, opts *DiffOptions) string {
	o := DiffOptions{ContextLines: 3, MaxLines: 10000}
	if opts != nil {
		o.Color = opts.Color
		if opts.ContextLines > 0 {
			o.ContextLines = opts.ContextLines
		}
		if opts.MaxLines > 0 {
			o.MaxLines = opts.MaxLines
		}
	}

	if bytes.Equal(old, newer) {
		return ""
	}
	if isBinary(old) || isBinary(newer) {
		return fmt.Sprintf("Binary files %s and %s differ\n", oldPath, newPath)
	}

	a, b := splitLines(string(old)), splitLines(string(newer))
	if len(a) > o.MaxLines || len(b) > o.MaxLines {
		return fmt.Sprintf("Files too large for diff (%d and %d lines)\n", len(a), len(b))
	}

	hunks := groupHunks(editScript(a, b), o.ContextLines)
	if len(hunks) == 0 {
		// Only line endings differ.
		return fmt.Sprintf("Files %s and %s differ in line endings\n", oldPath, newPath)
	}

	width := 0
	if o.Color {
		width = terminalWidth()
	}
	style := func(s lipgloss.Style, text string) string {
		if !o.Color {
			return text
		}
		return s.Render(truncate(text, width))
	}

	var buf strings.Builder
	buf.WriteString(style(diffHeaderStyle, "--- "+oldPath) + "\n")
	buf.WriteString(style(diffHeaderStyle, "+++ "+newPath) + "\n")
	for _, h := range hunks {
		oldStart, oldCount, newStart, newCount := h.bounds()
		buf.WriteString(style(diffHunkStyle, fmt.Sprintf("@@ -%d,%d +%d,%d @@", oldStart, oldCount, newStart, newCount)) + "\n")
		for _, e := range h {
			switch e.kind {
			case editInsert:
				buf.WriteString(style(diffAddedStyle, "+"+e.text) + "\n")
			case editDelete:
				buf.WriteString(style(diffRemovedStyle, "-"+e.text) + "\n")
			default:
				buf.WriteString(" " + e.text + "\n")
			}
		}
	}
	return buf.String()
}

// editScript implements the Myers O(ND) algorithm and returns the shortest
// edit script from a to b.
func editScript(a, b []string) []edit {
	n, m := len(a), len(b)
	max := n + m
	if max == 0 {
		return nil
	}
	offset := max + 1
	v := make([]int, 2*max+3)
	var trace [][]int

search:
	for d := 0; d <= max; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				break search
			}
		}
	}

	var script []edit
	x, y := n, m
	for d := len(trace) - 1; d >= 0; d-- {
		v := trace[d]
		k := x - y
		var prevK int
		if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[offset+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			script = append(script, edit{kind: editEqual, text: a[x], oldPos: x, newPos: y})
		}
		if d > 0 {
			if x == prevX {
				script = append(script, edit{kind: editInsert, text: b[prevY], oldPos: prevX, newPos: prevY})
			} else {
				script = append(script, edit{kind: editDelete, text: a[prevX], oldPos: prevX, newPos: prevY})
			}
		}
		x, y = prevX, prevY
	}

	for i, j := 0, len(script)-1; i < j; i, j = i+1, j-1 {
		script[i], script[j] = script[j], script[i]
	}
	return script
}

type hunk []edit

// bounds returns the 1-based unified diff header numbers.
func (h hunk) bounds() (oldStart, oldCount, newStart, newCount int) {
	for _, e := range h {
		if e.kind != editInsert {
			oldCount++
		}
		if e.kind != editDelete {
			newCount++
		}
	}
	oldStart, newStart = h[0].oldPos, h[0].newPos
	if oldCount > 0 {
		oldStart++
	}
	if newCount > 0 {
		newStart++
	}
	return oldStart, oldCount, newStart, newCount
}

// groupHunks cuts the script into hunks of changes with up to context
// equal lines around them. Changes closer than 2*context share a hunk.
func groupHunks(script []edit, context int) []hunk {
	var hunks []hunk
	start, end := -1, -1
	for i, e := range script {
		if e.kind == editEqual {
			continue
		}
		lo, hi := max(0, i-context), min(len(script), i+context+1)
		if start >= 0 && lo <= end {
			end = hi
			continue
		}
		if start >= 0 {
			hunks = append(hunks, hunk(script[start:end]))
		}
		start, end = lo, hi
	}
	if start >= 0 {
		hunks = append(hunks, hunk(script[start:end]))
	}
	return hunks
}

// splitLines splits on LF and drops CR so CRLF and LF files compare equal
// line by line. A trailing newline does not produce an empty last line.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// isBinary reports whether data looks like binary content: a NUL byte in
// the first 8KB.
func isBinary(data []byte) bool {
	if len(data) > 8192 {
		data = data[:8192]
	}
	return bytes.IndexByte(data, 0) >= 0
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 0
	}
	return width
}

// truncate shortens s to width runes, marking the cut with an ellipsis.
// A width of 0 disables truncation.
func truncate(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "…"
}
