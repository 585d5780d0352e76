package analytics

import (
	"bufio"
	"fmt"
	"io"
)

// WriteText prints a page as plain text for terminal output.
func WriteText(w io.Writer, page Page) error {
	bw := bufio.NewWriter(w)
	if page.Message != "" {
		fmt.Fprintln(bw, page.Message)
		return bw.Flush()
	}
	for i, tile := range page.Tiles {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "%s %s\n", tile.Icon, tile.Title)
		if tile.Fallback != "" {
			fmt.Fprintf(bw, "  %s\n", tile.Fallback)
			continue
		}
		writeStats(bw, "  ", tile.Stats)
		for _, s := range tile.Sections {
			fmt.Fprintf(bw, "  %s\n", s.Title)
			writeStats(bw, "    ", s.Stats)
		}
		for _, b := range tile.Bars {
			fmt.Fprintf(bw, "  %s: %s\n", b.Label, b.Value)
		}
		if tile.Progress != nil {
			fmt.Fprintf(bw, "  %s (%s)\n", tile.Progress.Summary, tile.Progress.Rate)
		}
		if tile.Donut != nil {
			writeDonut(bw, *tile.Donut)
		}
		for _, d := range tile.Extras {
			writeDonut(bw, d)
		}
	}
	return bw.Flush()
}

func writeStats(w io.Writer, indent string, stats []Stat) {
	for _, s := range stats {
		if s.Value == "" {
			fmt.Fprintf(w, "%s%s\n", indent, s.Label)
			continue
		}
		fmt.Fprintf(w, "%s%s: %s\n", indent, s.Label, s.Value)
	}
}

func writeDonut(w io.Writer, d Donut) {
	fmt.Fprintf(w, "  %s\n", d.Title)
	for _, s := range d.Slices {
		fmt.Fprintf(w, "    %s: %d\n", s.Label, s.Count)
	}
}
