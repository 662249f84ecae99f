// Command report reads a station's event log and writes a self-contained
// HTML bar chart of its hourly event counts.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rebar-platform/edgevision/internal/fsutil"
	"github.com/rebar-platform/edgevision/internal/report"
	"github.com/rebar-platform/edgevision/internal/security"
	"github.com/rebar-platform/edgevision/internal/vision/event"
	"github.com/rebar-platform/edgevision/internal/vision/store"
)

func main() {
	path := flag.String("path", "", "path to the station's JSONL event log")
	stationID := flag.String("station", "", "station ID to report on")
	out := flag.String("out", "", "output HTML file path (defaults to stdout)")
	flag.Parse()

	if *path == "" || *stationID == "" {
		fmt.Fprintln(os.Stderr, "report: --path and --station are required")
		os.Exit(2)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}
	if err := security.ValidatePathWithinDirectory(*path, cwd); err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}

	st, err := store.New(fsutil.OSFileSystem{}, *path, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}

	events, err := st.ReadAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}

	filtered := make([]event.Event, 0, len(events))
	for _, e := range events {
		if e.StationID() == *stationID {
			filtered = append(filtered, e)
		}
	}

	summary, err := report.Summarize(*stationID, filtered)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}

	html, err := report.RenderHourlyChart(summary)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: %v\n", err)
		os.Exit(1)
	}

	if *out == "" {
		fmt.Println(html)
		return
	}
	if err := os.WriteFile(*out, []byte(html), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "report: writing %q: %v\n", *out, err)
		os.Exit(1)
	}
}
