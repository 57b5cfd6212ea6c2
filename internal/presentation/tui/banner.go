package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`  _       _             _    __ _`, "#818cf8"},
	{` (_)_ __ | |_ ___ _ __ | |_ / _| | _____      __`, "#a78bfa"},
	{` | | '_ \| __/ _ \ '_ \| __| |_| |/ _ \ \ /\ / /`, "#c084fc"},
	{` | | | | | ||  __/ | | | |_|  _| | (_) \ V  V /`, "#e879f9"},
	{` |_|_| |_|\__\___|_| |_|\__|_| |_|\___/ \_/\_/`, "#f472b6"},
}

// PrintBanner writes the intentflow banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  "+version).Faint())
	fmt.Fprintln(w)
}
