// Command verify scans an event log for append-only violations: duplicate
// event IDs and non-increasing per-station timestamps. It prints each
// violation found and exits 1, or prints "No violations detected" and
// exits 0.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rebar-platform/edgevision/internal/fsutil"
	"github.com/rebar-platform/edgevision/internal/security"
	"github.com/rebar-platform/edgevision/internal/vision/store"
)

func main() {
	path := flag.String("path", "", "path to the JSONL event store")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "verify: --path is required")
		os.Exit(2)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(2)
	}
	if err := security.ValidatePathWithinDirectory(*path, cwd); err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(2)
	}

	violations, err := store.ScanForViolations(fsutil.OSFileSystem{}, *path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify: %v\n", err)
		os.Exit(2)
	}

	if len(violations) == 0 {
		fmt.Println("No violations detected")
		os.Exit(0)
	}

	for _, v := range violations {
		fmt.Printf("line %d: %s\n", v.Line, v.Reason)
	}
	os.Exit(1)
}
