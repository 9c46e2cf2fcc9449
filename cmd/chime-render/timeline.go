package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/cwbudde/algo-chimes/analysis"
	"github.com/cwbudde/algo-chimes/chime"
)

const defaultTimelineWidth = 72

// printTimeline draws one row per tube with a mark in every column that holds
// a strike of that tube. It only draws to an interactive terminal.
func printTimeline(w io.Writer, strikes []chime.Strike, samples, tubes int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return
	}
	width := defaultTimelineWidth
	if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 16 {
		width = cols - 8
	}
	for _, line := range timelineRows(strikes, samples, tubes, width) {
		fmt.Fprintln(w, line)
	}
}

func timelineRows(strikes []chime.Strike, samples, tubes, width int) []string {
	rows := make([][]byte, tubes)
	for i := range rows {
		rows[i] = []byte(strings.Repeat(".", width))
	}
	for _, s := range strikes {
		if s.Tube < 0 || s.Tube >= tubes {
			continue
		}
		cols := analysis.Timeline([]chime.Strike{s}, samples, width)
		for c, v := range cols {
			if v != 0 {
				rows[s.Tube][c] = '|'
			}
		}
	}
	out := make([]string, tubes)
	for i, r := range rows {
		out[i] = fmt.Sprintf("tube %d %s", i+1, r)
	}
	return out
}
